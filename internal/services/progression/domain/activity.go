package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/character"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/domain/tree"
	"github.com/evergrind/evergrind/internal/services/progression/notify"
	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

// RecordActivityInput is one external activity event.
type RecordActivityInput struct {
	CharacterID   string
	CharacterName string
	ActivityType  string
	Source        string
	SourceRef     string
	CustomXP      map[stat.Code]float64
	ActivityTime  time.Time
}

// GrantSummary is the recorded result of one activity grant. Replays of the
// same (character, source, source_ref) return the original summary.
type GrantSummary struct {
	XPGranted        map[stat.Code]int
	StatLevelUps     []stat.Code
	CharacterLevelUp bool
	NewLevel         int
}

// grantSummaryDoc is the persisted JSON shape of a grant summary.
type grantSummaryDoc struct {
	XPGranted        map[string]int `json:"xp_granted"`
	StatLevelUps     []string       `json:"stat_level_ups,omitempty"`
	CharacterLevelUp bool           `json:"character_level_up"`
	NewLevel         int            `json:"new_level"`
}

func encodeGrantSummary(summary GrantSummary) (string, error) {
	doc := grantSummaryDoc{
		XPGranted:        make(map[string]int, len(summary.XPGranted)),
		CharacterLevelUp: summary.CharacterLevelUp,
		NewLevel:         summary.NewLevel,
	}
	for code, amount := range summary.XPGranted {
		doc.XPGranted[string(code)] = amount
	}
	for _, code := range summary.StatLevelUps {
		doc.StatLevelUps = append(doc.StatLevelUps, string(code))
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode grant summary: %w", err)
	}
	return string(raw), nil
}

func decodeGrantSummary(raw string) (GrantSummary, error) {
	var doc grantSummaryDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return GrantSummary{}, fmt.Errorf("decode grant summary: %w", err)
	}
	summary := GrantSummary{
		XPGranted:        make(map[stat.Code]int, len(doc.XPGranted)),
		CharacterLevelUp: doc.CharacterLevelUp,
		NewLevel:         doc.NewLevel,
	}
	for code, amount := range doc.XPGranted {
		summary.XPGranted[stat.Code(code)] = amount
	}
	for _, code := range doc.StatLevelUps {
		summary.StatLevelUps = append(summary.StatLevelUps, stat.Code(code))
	}
	return summary, nil
}

// RecordActivity converts one activity event into XP, levels, and points.
// It is the sole path through which experience changes, and it is
// idempotent on (character, source, source_ref): a replayed event returns
// the originally recorded summary without granting again.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (GrantSummary, error) {
	if s == nil || s.store == nil {
		return GrantSummary{}, errStoreNotConfigured
	}
	characterID := strings.TrimSpace(input.CharacterID)
	if characterID == "" {
		return GrantSummary{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	source := strings.TrimSpace(input.Source)
	sourceRef := strings.TrimSpace(input.SourceRef)

	unlock := s.locks.Lock(characterID)
	defer unlock()

	if sourceRef != "" {
		existing, err := s.store.GetActivityBySourceRef(ctx, characterID, source, sourceRef)
		if err == nil {
			return replaySummary(existing)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return GrantSummary{}, err
		}
	}

	grant, err := s.catalog.Activities.GrantFor(input.ActivityType, input.CustomXP)
	if err != nil {
		return GrantSummary{}, err
	}

	record, err := s.store.GetCharacter(ctx, characterID)
	if errors.Is(err, storage.ErrNotFound) {
		record, err = s.autoRegister(ctx, characterID, input.CharacterName)
	}
	if err != nil {
		return GrantSummary{}, err
	}

	statRecords, err := s.store.GetStats(ctx, characterID)
	if err != nil {
		return GrantSummary{}, err
	}
	credits, err := s.store.GetCredits(ctx, characterID)
	if err != nil {
		return GrantSummary{}, err
	}
	modifiers, err := s.store.GetModifiers(ctx, characterID)
	if err != nil {
		return GrantSummary{}, err
	}

	// Pending skill credits land before multipliers scale the grant.
	var consumedSkills []string
	for _, credit := range credits {
		code := stat.Code(credit.Stat)
		if _, ok := grant[code]; !ok {
			continue
		}
		grant[code] += credit.Amount
		consumedSkills = append(consumedSkills, credit.SkillCode)
	}

	multiplier := xpMultiplier(modifiers)
	if multiplier != 1 {
		for code, amount := range grant {
			grant[code] = int(math.Round(float64(amount) * multiplier))
		}
	}

	statsByCode := make(map[stat.Code]storage.StatRecord, len(statRecords))
	for _, row := range statRecords {
		statsByCode[stat.Code(row.Stat)] = row
	}

	now := s.nowUTC()
	summary := GrantSummary{XPGranted: grant.Clone()}
	var updatedStats []storage.StatRecord
	for _, code := range grant.Stats() {
		row, ok := statsByCode[code]
		if !ok {
			row = storage.StatRecord{CharacterID: characterID, Stat: string(code)}
		}
		oldLevel := s.catalog.Ledger.StatLevel(row.XP)
		row.XP += int64(grant[code])
		if s.catalog.Ledger.StatLevel(row.XP) > oldLevel {
			summary.StatLevelUps = append(summary.StatLevelUps, code)
		}
		updatedStats = append(updatedStats, row)
	}

	oldTotalXP := record.TotalXP
	record.TotalXP += int64(grant.Total())
	newLevel := s.catalog.Ledger.CharacterLevel(record.TotalXP)
	pointsEarned := s.catalog.Ledger.CharacterPointsForRange(oldTotalXP, record.TotalXP)
	summary.CharacterLevelUp = newLevel > record.Level
	summary.NewLevel = newLevel
	record.Level = newLevel
	record.StatPoints += pointsEarned
	record.PointsGranted += pointsEarned
	record.UpdatedAt = now

	grantJSON, err := encodeGrantSummary(summary)
	if err != nil {
		return GrantSummary{}, err
	}
	activityID, err := s.newID()
	if err != nil {
		return GrantSummary{}, err
	}
	occurredAt := input.ActivityTime
	if occurredAt.IsZero() {
		occurredAt = now
	}

	mutation := storage.ActivityMutation{
		Character:      record,
		Stats:          updatedStats,
		ConsumedSkills: consumedSkills,
		Log: storage.ActivityRecord{
			ID:           activityID,
			CharacterID:  characterID,
			ActivityType: strings.ToLower(strings.TrimSpace(input.ActivityType)),
			Source:       source,
			SourceRef:    sourceRef,
			GrantJSON:    grantJSON,
			OccurredAt:   occurredAt,
			CreatedAt:    now,
		},
	}
	if err := s.store.ApplyActivity(ctx, mutation); err != nil {
		// A racing duplicate lost to the unique index; return the winner's
		// recorded summary.
		if sourceRef != "" && errors.Is(err, storage.ErrConflict) {
			existing, lookupErr := s.store.GetActivityBySourceRef(ctx, characterID, source, sourceRef)
			if lookupErr == nil {
				return replaySummary(existing)
			}
			return GrantSummary{}, err
		}
		return GrantSummary{}, err
	}

	s.dispatcher.Dispatch(activityEvents(characterID, summary))
	return summary, nil
}

// ActivityLogEntry is one recorded activity event.
type ActivityLogEntry struct {
	ID           string
	ActivityType string
	Source       string
	SourceRef    string
	XPGranted    map[stat.Code]int
	OccurredAt   time.Time
	RecordedAt   time.Time
}

// ActivityLogPage is one page of log entries, newest first.
type ActivityLogPage struct {
	Entries       []ActivityLogEntry
	NextPageToken string
}

// ListActivityLog pages through one character's activity history.
func (s *Service) ListActivityLog(ctx context.Context, characterID string, pageSize int, pageToken string) (ActivityLogPage, error) {
	if s == nil || s.store == nil {
		return ActivityLogPage{}, errStoreNotConfigured
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return ActivityLogPage{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	if _, err := s.store.GetCharacter(ctx, characterID); err != nil {
		return ActivityLogPage{}, mapCharacterErr(err, characterID)
	}

	page, err := s.store.ListActivities(ctx, characterID, pageSize, strings.TrimSpace(pageToken))
	if err != nil {
		return ActivityLogPage{}, err
	}
	result := ActivityLogPage{NextPageToken: page.NextPageToken}
	for _, record := range page.Entries {
		entry := ActivityLogEntry{
			ID:           record.ID,
			ActivityType: record.ActivityType,
			Source:       record.Source,
			SourceRef:    record.SourceRef,
			OccurredAt:   record.OccurredAt,
			RecordedAt:   record.CreatedAt,
		}
		if summary, decodeErr := decodeGrantSummary(record.GrantJSON); decodeErr == nil {
			entry.XPGranted = summary.XPGranted
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func (s *Service) autoRegister(ctx context.Context, characterID string, name string) (storage.CharacterRecord, error) {
	if strings.TrimSpace(name) == "" {
		name = "Adventurer"
	}
	c, err := character.New(characterID, name, s.nowUTC())
	if err != nil {
		return storage.CharacterRecord{}, err
	}
	if err := s.createCharacter(ctx, c); err != nil {
		return storage.CharacterRecord{}, err
	}
	return s.store.GetCharacter(ctx, characterID)
}

// replaySummary reconstructs the originally recorded summary so replayed
// events return the exact value the first call did.
func replaySummary(record storage.ActivityRecord) (GrantSummary, error) {
	return decodeGrantSummary(record.GrantJSON)
}

// xpMultiplier composes all active xp_multiplier modifiers multiplicatively.
func xpMultiplier(modifiers []storage.ModifierRecord) float64 {
	product := 1.0
	for _, modifier := range modifiers {
		if modifier.Kind == string(tree.EffectXPMultiplier) && modifier.Multiplier > 0 {
			product *= modifier.Multiplier
		}
	}
	return product
}

func activityEvents(characterID string, summary GrantSummary) []notify.Event {
	var events []notify.Event
	if summary.CharacterLevelUp {
		events = append(events, notify.Event{
			Kind:        notify.KindLevelUp,
			CharacterID: characterID,
			Level:       summary.NewLevel,
		})
	}
	for _, code := range summary.StatLevelUps {
		events = append(events, notify.Event{
			Kind:        notify.KindStatLevelUp,
			CharacterID: characterID,
			Stat:        string(code),
		})
	}
	return events
}
