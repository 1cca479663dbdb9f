package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

// UseSkillResult summarizes one successful skill use.
type UseSkillResult struct {
	SkillCode   string
	TimesUsed   int
	NextReadyAt time.Time
	CreditStat  stat.Code
	CreditXP    int
}

// UseSkill triggers one unlocked skill. The skill's bonus-XP credit becomes
// pending on its stat domain and is consumed by the next matching activity
// grant.
func (s *Service) UseSkill(ctx context.Context, characterID string, skillCode string) (UseSkillResult, error) {
	if s == nil || s.store == nil {
		return UseSkillResult{}, errStoreNotConfigured
	}
	characterID = strings.TrimSpace(characterID)
	skillCode = strings.TrimSpace(skillCode)
	if characterID == "" {
		return UseSkillResult{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	if skillCode == "" {
		return UseSkillResult{}, apperrors.New(apperrors.CodeValidation, "skill code is required")
	}

	definition, ok := s.catalog.Skill(skillCode)
	if !ok {
		return UseSkillResult{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("skill %s does not exist", skillCode),
			map[string]string{"skill_code": skillCode})
	}

	unlock := s.locks.Lock(characterID)
	defer unlock()

	if _, err := s.store.GetCharacter(ctx, characterID); err != nil {
		return UseSkillResult{}, mapCharacterErr(err, characterID)
	}
	record, err := s.store.GetSkill(ctx, characterID, skillCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return UseSkillResult{}, apperrors.WithMetadata(apperrors.CodeSkillNotUnlocked,
				fmt.Sprintf("skill %s is not unlocked", skillCode),
				map[string]string{"skill_code": skillCode})
		}
		return UseSkillResult{}, err
	}

	now := s.nowUTC()
	lastUsed := time.Time{}
	if record.LastUsedAt != nil {
		lastUsed = *record.LastUsedAt
	}
	if err := definition.CheckReady(lastUsed, now); err != nil {
		return UseSkillResult{}, err
	}

	record.TimesUsed++
	record.LastUsedAt = &now
	credit := definition.Credit()
	err = s.store.ApplySkillUse(ctx, storage.SkillUseMutation{
		Skill: record,
		Credit: storage.CreditRecord{
			CharacterID: characterID,
			SkillCode:   credit.SkillCode,
			Stat:        string(credit.Stat),
			Amount:      credit.Amount,
			CreatedAt:   now,
		},
	})
	if err != nil {
		return UseSkillResult{}, err
	}

	return UseSkillResult{
		SkillCode:   skillCode,
		TimesUsed:   record.TimesUsed,
		NextReadyAt: now.Add(definition.Cooldown),
		CreditStat:  credit.Stat,
		CreditXP:    credit.Amount,
	}, nil
}
