package activity

import (
	"math"
	"testing"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

func testTable(t *testing.T) Table {
	t.Helper()
	table, err := NewTable(map[string]Grant{
		"workout": {stat.Strength: 50, stat.Endurance: 30},
		"Reading": {stat.Intellect: 40},
	})
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name     string
		defaults map[string]Grant
		wantErr  bool
	}{
		{"valid", map[string]Grant{"run": {stat.Endurance: 20}}, false},
		{"blank type", map[string]Grant{" ": {stat.Endurance: 20}}, true},
		{"empty grant", map[string]Grant{"run": {}}, true},
		{"unknown stat", map[string]Grant{"run": {stat.Code("LCK"): 5}}, true},
		{"zero amount", map[string]Grant{"run": {stat.Endurance: 0}}, true},
		{"negative amount", map[string]Grant{"run": {stat.Endurance: -5}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.defaults)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGrantFor(t *testing.T) {
	table := testTable(t)

	tests := []struct {
		name         string
		activityType string
		custom       map[stat.Code]float64
		want         Grant
		wantCode     apperrors.Code
	}{
		{"configured default", "workout", nil, Grant{stat.Strength: 50, stat.Endurance: 30}, ""},
		{"case and space folded", "  READING ", nil, Grant{stat.Intellect: 40}, ""},
		{"custom overrides default", "workout", map[stat.Code]float64{"STR": 10}, Grant{stat.Strength: 10}, ""},
		{"custom for unconfigured type", "meditation", map[stat.Code]float64{"WIS": 25}, Grant{stat.Wisdom: 25}, ""},
		{"custom rounds half up", "meditation", map[stat.Code]float64{"WIS": 12.5}, Grant{stat.Wisdom: 13}, ""},
		{"unknown type", "quantum_leap", nil, nil, apperrors.CodeUnknownActivityType},
		{"blank type", "  ", nil, nil, apperrors.CodeValidation},
		{"negative custom", "workout", map[stat.Code]float64{"STR": -1}, nil, apperrors.CodeValidation},
		{"nan custom", "workout", map[stat.Code]float64{"STR": math.NaN()}, nil, apperrors.CodeValidation},
		{"inf custom", "workout", map[stat.Code]float64{"STR": math.Inf(1)}, nil, apperrors.CodeValidation},
		{"unknown custom stat", "workout", map[stat.Code]float64{"LCK": 5}, nil, apperrors.CodeValidation},
		{"all zero custom is a no-op grant", "workout", map[stat.Code]float64{"STR": 0}, Grant{}, ""},
		{"zero rounds away", "workout", map[stat.Code]float64{"STR": 0.4}, Grant{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.GrantFor(tt.activityType, tt.custom)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if code := apperrors.CodeOf(err); code != tt.wantCode {
					t.Fatalf("expected code %s, got %s (%v)", tt.wantCode, code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for code, amount := range tt.want {
				if got[code] != amount {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestGrantForReturnsCopy(t *testing.T) {
	table := testTable(t)

	first, err := table.GrantFor("workout", nil)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	first[stat.Strength] = 9999

	second, err := table.GrantFor("workout", nil)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if second[stat.Strength] != 50 {
		t.Fatalf("table defaults mutated through returned grant: %v", second)
	}
}

func TestGrantTotal(t *testing.T) {
	g := Grant{stat.Strength: 50, stat.Endurance: 30, stat.Wisdom: 20}
	if g.Total() != 100 {
		t.Fatalf("expected total 100, got %d", g.Total())
	}
}
