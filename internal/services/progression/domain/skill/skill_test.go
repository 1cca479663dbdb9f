package skill

import (
	"testing"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

func TestSkillValidate(t *testing.T) {
	valid := Skill{Code: "second_wind", Name: "Second Wind", Domain: stat.Endurance, Cooldown: 24 * time.Hour, BonusXP: 50}

	tests := []struct {
		name    string
		mutate  func(s Skill) Skill
		wantErr bool
	}{
		{"valid", func(s Skill) Skill { return s }, false},
		{"zero cooldown ok", func(s Skill) Skill { s.Cooldown = 0; return s }, false},
		{"blank code", func(s Skill) Skill { s.Code = " "; return s }, true},
		{"unknown domain", func(s Skill) Skill { s.Domain = stat.Code("LCK"); return s }, true},
		{"negative cooldown", func(s Skill) Skill { s.Cooldown = -time.Hour; return s }, true},
		{"zero bonus", func(s Skill) Skill { s.BonusXP = 0; return s }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckReady(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Skill{Code: "rally", Domain: stat.Charisma, Cooldown: time.Hour, BonusXP: 25}

	tests := []struct {
		name     string
		lastUsed time.Time
		wantErr  bool
	}{
		{"never used", time.Time{}, false},
		{"cooldown elapsed", now.Add(-2 * time.Hour), false},
		{"exactly elapsed", now.Add(-time.Hour), false},
		{"still cooling", now.Add(-10 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CheckReady(tt.lastUsed, now)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := apperrors.CodeOf(err); got != apperrors.CodeOnCooldown {
				t.Fatalf("expected ON_COOLDOWN, got %s (%v)", got, err)
			}
		})
	}
}

func TestCooldownRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Skill{Code: "rally", Domain: stat.Charisma, Cooldown: time.Hour, BonusXP: 25}

	if got := s.CooldownRemaining(now.Add(-15*time.Minute), now); got != 45*time.Minute {
		t.Fatalf("expected 45m remaining, got %s", got)
	}
	if got := s.CooldownRemaining(time.Time{}, now); got != 0 {
		t.Fatalf("expected no cooldown for never-used skill, got %s", got)
	}
}

func TestCredit(t *testing.T) {
	s := Skill{Code: "deep_focus", Domain: stat.Intellect, Cooldown: time.Hour, BonusXP: 40}
	credit := s.Credit()
	if credit.SkillCode != "deep_focus" || credit.Stat != stat.Intellect || credit.Amount != 40 {
		t.Fatalf("unexpected credit: %+v", credit)
	}
}
