// Package activity defines the activity-type XP configuration and grant
// validation for the ingestion entry point.
package activity

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

// Grant holds per-stat XP amounts for one activity event.
type Grant map[stat.Code]int

// Total sums the grant across all stats.
func (g Grant) Total() int {
	total := 0
	for _, amount := range g {
		total += amount
	}
	return total
}

// Clone returns an independent copy of the grant.
func (g Grant) Clone() Grant {
	out := make(Grant, len(g))
	for code, amount := range g {
		out[code] = amount
	}
	return out
}

// Stats lists the granted stat codes in canonical order.
func (g Grant) Stats() []stat.Code {
	codes := make([]stat.Code, 0, len(g))
	for code := range g {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Table maps activity types to their default per-stat XP grants. It is
// configuration data passed in explicitly, never compiled-in global state.
type Table struct {
	defaults map[string]Grant
}

// NewTable validates and indexes activity-type defaults.
func NewTable(defaults map[string]Grant) (Table, error) {
	indexed := make(map[string]Grant, len(defaults))
	for rawType, grant := range defaults {
		activityType := strings.ToLower(strings.TrimSpace(rawType))
		if activityType == "" {
			return Table{}, fmt.Errorf("activity type is required")
		}
		if _, ok := indexed[activityType]; ok {
			return Table{}, fmt.Errorf("duplicate activity type %q", activityType)
		}
		if len(grant) == 0 {
			return Table{}, fmt.Errorf("activity type %s: grant is empty", activityType)
		}
		normalized := make(Grant, len(grant))
		for code, amount := range grant {
			if !stat.IsValid(code) {
				return Table{}, fmt.Errorf("activity type %s: unknown stat %q", activityType, code)
			}
			if amount <= 0 {
				return Table{}, fmt.Errorf("activity type %s: xp for %s must be positive", activityType, code)
			}
			normalized[code] = amount
		}
		indexed[activityType] = normalized
	}
	return Table{defaults: indexed}, nil
}

// Types lists the configured activity types in sorted order.
func (t Table) Types() []string {
	types := make([]string, 0, len(t.defaults))
	for activityType := range t.defaults {
		types = append(types, activityType)
	}
	sort.Strings(types)
	return types
}

// GrantFor resolves the XP grant for one activity event. Custom amounts, when
// present, replace the configured default entirely. An activity type with
// neither custom amounts nor a configured default is unknown.
func (t Table) GrantFor(activityType string, custom map[stat.Code]float64) (Grant, error) {
	activityType = strings.ToLower(strings.TrimSpace(activityType))
	if activityType == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "activity type is required")
	}
	if len(custom) > 0 {
		return parseCustom(custom)
	}
	grant, ok := t.defaults[activityType]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeUnknownActivityType,
			fmt.Sprintf("activity type %s has no configured xp and no custom amounts", activityType),
			map[string]string{"activity_type": activityType})
	}
	return grant.Clone(), nil
}

// parseCustom validates caller-supplied XP amounts. Amounts arrive as floats
// from the wire and are rounded to whole XP after validation.
func parseCustom(custom map[stat.Code]float64) (Grant, error) {
	grant := make(Grant, len(custom))
	for rawCode, amount := range custom {
		code, ok := stat.Parse(string(rawCode))
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeValidation,
				fmt.Sprintf("unknown stat %q in custom xp", rawCode),
				map[string]string{"stat": string(rawCode)})
		}
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			return nil, apperrors.WithMetadata(apperrors.CodeValidation,
				fmt.Sprintf("custom xp for %s is not finite", code),
				map[string]string{"stat": string(code)})
		}
		if amount < 0 {
			return nil, apperrors.WithMetadata(apperrors.CodeValidation,
				fmt.Sprintf("custom xp for %s is negative", code),
				map[string]string{"stat": string(code)})
		}
		rounded := int(math.Round(amount))
		if rounded == 0 {
			continue
		}
		grant[code] = rounded
	}
	// An all-zero grant is a valid no-op event; only negative, non-finite,
	// or unrecognized amounts are rejected.
	return grant, nil
}
