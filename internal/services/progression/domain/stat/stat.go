// Package stat defines the six core attributes and their derived stats.
package stat

import "strings"

// Code identifies one of the six core attributes.
type Code string

const (
	Strength  Code = "STR"
	Endurance Code = "END"
	Agility   Code = "AGI"
	Intellect Code = "INT"
	Wisdom    Code = "WIS"
	Charisma  Code = "CHA"
)

// Codes returns all core attribute codes in canonical order.
func Codes() []Code {
	return []Code{Strength, Endurance, Agility, Intellect, Wisdom, Charisma}
}

// IsValid reports whether code is one of the six core attributes.
func IsValid(code Code) bool {
	switch code {
	case Strength, Endurance, Agility, Intellect, Wisdom, Charisma:
		return true
	}
	return false
}

// Parse normalizes a raw attribute code string.
func Parse(raw string) (Code, bool) {
	code := Code(strings.ToUpper(strings.TrimSpace(raw)))
	if !IsValid(code) {
		return "", false
	}
	return code, true
}

// Totals maps each core attribute to its current total value
// (base value plus allocated bonus).
type Totals map[Code]int
