// Package skill defines cooldown-gated abilities granted by tree nodes.
package skill

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

// Skill is a static ability definition. Using an unlocked skill flags a
// pending bonus-XP credit on the skill's stat domain, consumed by the next
// matching activity grant.
type Skill struct {
	Code     string
	Name     string
	Domain   stat.Code
	Cooldown time.Duration
	BonusXP  int
}

// Validate checks the static definition fields.
func (s Skill) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return fmt.Errorf("skill code is required")
	}
	if !stat.IsValid(s.Domain) {
		return fmt.Errorf("skill %s: unknown stat domain %q", s.Code, s.Domain)
	}
	if s.Cooldown < 0 {
		return fmt.Errorf("skill %s: cooldown must be non-negative", s.Code)
	}
	if s.BonusXP <= 0 {
		return fmt.Errorf("skill %s: bonus xp must be positive", s.Code)
	}
	return nil
}

// CooldownRemaining reports how long until the skill is usable again.
// A zero lastUsed means the skill has never been used.
func (s Skill) CooldownRemaining(lastUsed time.Time, now time.Time) time.Duration {
	if lastUsed.IsZero() {
		return 0
	}
	remaining := s.Cooldown - now.Sub(lastUsed)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckReady returns a coded error when the skill is still cooling down.
func (s Skill) CheckReady(lastUsed time.Time, now time.Time) error {
	remaining := s.CooldownRemaining(lastUsed, now)
	if remaining == 0 {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeOnCooldown,
		fmt.Sprintf("skill %s is on cooldown", s.Code),
		map[string]string{
			"skill_code":        s.Code,
			"remaining_seconds": fmt.Sprintf("%d", int(remaining.Round(time.Second).Seconds())),
		})
}

// Credit is a pending bonus-XP grant produced by skill use. It is consumed
// by the next activity grant that touches the credited stat.
type Credit struct {
	SkillCode string
	Stat      stat.Code
	Amount    int
}

// Credit builds the pending bonus credit this skill produces on use.
func (s Skill) Credit() Credit {
	return Credit{SkillCode: s.Code, Stat: s.Domain, Amount: s.BonusXP}
}
