package stat

import "math"

// DerivedCode identifies a derived stat computed from core attribute totals.
type DerivedCode string

const (
	DerivedPower     DerivedCode = "POWER"
	DerivedVitality  DerivedCode = "VITALITY"
	DerivedFocus     DerivedCode = "FOCUS"
	DerivedSwiftness DerivedCode = "SWIFTNESS"
	DerivedPresence  DerivedCode = "PRESENCE"
)

// term is one weighted contribution of a core attribute to a derived stat.
type term struct {
	Stat   Code
	Weight float64
}

// derivedFormulas is the fixed table of weighted linear formulas. Weights for
// each derived stat sum to 1 so derived values stay on the attribute scale.
var derivedFormulas = map[DerivedCode][]term{
	DerivedPower:     {{Strength, 0.7}, {Endurance, 0.3}},
	DerivedVitality:  {{Endurance, 0.6}, {Strength, 0.2}, {Wisdom, 0.2}},
	DerivedFocus:     {{Intellect, 0.6}, {Wisdom, 0.4}},
	DerivedSwiftness: {{Agility, 0.8}, {Endurance, 0.2}},
	DerivedPresence:  {{Charisma, 0.7}, {Wisdom, 0.3}},
}

// DerivedCodes returns all derived stat codes in canonical order.
func DerivedCodes() []DerivedCode {
	return []DerivedCode{DerivedPower, DerivedVitality, DerivedFocus, DerivedSwiftness, DerivedPresence}
}

// ComputeDerived evaluates every derived stat formula against the provided
// attribute totals. Missing attributes contribute zero. The result is
// deterministic and independent of map iteration order; values are rounded
// half away from zero to two decimal places.
func ComputeDerived(totals Totals) map[DerivedCode]float64 {
	derived := make(map[DerivedCode]float64, len(derivedFormulas))
	for code, formula := range derivedFormulas {
		var value float64
		for _, part := range formula {
			value += part.Weight * float64(totals[part.Stat])
		}
		derived[code] = math.Round(value*100) / 100
	}
	return derived
}
