package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

// CreateCharacter persists one character with its stat rows and the
// auto-allocated origin node in a single transaction.
func (s *Store) CreateCharacter(ctx context.Context, character storage.CharacterRecord, stats []storage.StatRecord, origin storage.NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	normalized, err := normalizeCharacterRecord(character)
	if err != nil {
		return err
	}

	return s.transact(ctx, "create character", func(tx *sql.Tx) error {
		if err := insertCharacterExec(ctx, tx, normalized); err != nil {
			return err
		}
		for _, statRecord := range stats {
			if err := upsertStatExec(ctx, tx, statRecord); err != nil {
				return err
			}
		}
		return insertNodeExec(ctx, tx, origin)
	})
}

// GetCharacter loads one character row by id.
func (s *Store) GetCharacter(ctx context.Context, id string) (storage.CharacterRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CharacterRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.CharacterRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.CharacterRecord{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, level, total_xp, stat_points, points_granted, respec_tokens, created_at, updated_at
FROM characters
WHERE id = ?
`, id)
	record, err := scanCharacter(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CharacterRecord{}, storage.ErrNotFound
		}
		return storage.CharacterRecord{}, fmt.Errorf("get character: %w", err)
	}
	return record, nil
}

// GetStats loads all stat rows for one character in stat-code order.
func (s *Store) GetStats(ctx context.Context, characterID string) ([]storage.StatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT character_id, stat, xp, allocated_bonus
FROM character_stats
WHERE character_id = ?
ORDER BY stat ASC
`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list character stats: %w", err)
	}
	defer rows.Close()

	var results []storage.StatRecord
	for rows.Next() {
		var record storage.StatRecord
		if err := rows.Scan(&record.CharacterID, &record.Stat, &record.XP, &record.AllocatedBonus); err != nil {
			return nil, fmt.Errorf("scan stat row: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stat rows: %w", err)
	}
	return results, nil
}

// GetSkills loads all skill unlock rows for one character.
func (s *Store) GetSkills(ctx context.Context, characterID string) ([]storage.SkillRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT character_id, skill_code, unlocked_at, times_used, last_used_at
FROM character_skills
WHERE character_id = ?
ORDER BY skill_code ASC
`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list character skills: %w", err)
	}
	defer rows.Close()

	var results []storage.SkillRecord
	for rows.Next() {
		record, scanErr := scanSkill(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan skill row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skill rows: %w", err)
	}
	return results, nil
}

// GetSkill loads one skill unlock row.
func (s *Store) GetSkill(ctx context.Context, characterID string, skillCode string) (storage.SkillRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SkillRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.SkillRecord{}, err
	}
	characterID = strings.TrimSpace(characterID)
	skillCode = strings.TrimSpace(skillCode)
	if characterID == "" {
		return storage.SkillRecord{}, fmt.Errorf("character id is required")
	}
	if skillCode == "" {
		return storage.SkillRecord{}, fmt.Errorf("skill code is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT character_id, skill_code, unlocked_at, times_used, last_used_at
FROM character_skills
WHERE character_id = ? AND skill_code = ?
`, characterID, skillCode)
	record, err := scanSkill(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SkillRecord{}, storage.ErrNotFound
		}
		return storage.SkillRecord{}, fmt.Errorf("get character skill: %w", err)
	}
	return record, nil
}

// GetModifiers loads the active modifier set for one character.
func (s *Store) GetModifiers(ctx context.Context, characterID string) ([]storage.ModifierRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT character_id, node_code, kind, multiplier, tag
FROM character_modifiers
WHERE character_id = ?
ORDER BY node_code ASC, kind ASC, tag ASC
`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list character modifiers: %w", err)
	}
	defer rows.Close()

	var results []storage.ModifierRecord
	for rows.Next() {
		var record storage.ModifierRecord
		if err := rows.Scan(&record.CharacterID, &record.NodeCode, &record.Kind, &record.Multiplier, &record.Tag); err != nil {
			return nil, fmt.Errorf("scan modifier row: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modifier rows: %w", err)
	}
	return results, nil
}

// GetCredits loads the pending bonus-XP credits for one character.
func (s *Store) GetCredits(ctx context.Context, characterID string) ([]storage.CreditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT character_id, skill_code, stat, amount, created_at
FROM pending_credits
WHERE character_id = ?
ORDER BY skill_code ASC
`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list pending credits: %w", err)
	}
	defer rows.Close()

	var results []storage.CreditRecord
	for rows.Next() {
		var record storage.CreditRecord
		var createdAt int64
		if err := rows.Scan(&record.CharacterID, &record.SkillCode, &record.Stat, &record.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credit row: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit rows: %w", err)
	}
	return results, nil
}

// GrantRespecTokens adds tokens to one character and returns the updated row.
func (s *Store) GrantRespecTokens(ctx context.Context, characterID string, tokens int, now time.Time) (storage.CharacterRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CharacterRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.CharacterRecord{}, err
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return storage.CharacterRecord{}, fmt.Errorf("character id is required")
	}
	if tokens <= 0 {
		return storage.CharacterRecord{}, fmt.Errorf("token count must be positive")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE characters
SET respec_tokens = respec_tokens + ?, updated_at = ?
WHERE id = ?
`, tokens, toMillis(now), characterID)
	if err != nil {
		return storage.CharacterRecord{}, fmt.Errorf("grant respec tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.CharacterRecord{}, fmt.Errorf("grant respec tokens rows affected: %w", err)
	}
	if affected == 0 {
		return storage.CharacterRecord{}, storage.ErrNotFound
	}
	return s.GetCharacter(ctx, characterID)
}

func normalizeCharacterRecord(record storage.CharacterRecord) (storage.CharacterRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Name = strings.TrimSpace(record.Name)
	if record.ID == "" {
		return storage.CharacterRecord{}, fmt.Errorf("character id is required")
	}
	if record.Name == "" {
		return storage.CharacterRecord{}, fmt.Errorf("character name is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.CharacterRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return storage.CharacterRecord{}, fmt.Errorf("updated_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func insertCharacterExec(ctx context.Context, execer sqlExecer, record storage.CharacterRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO characters (
		id, name, level, total_xp, stat_points, points_granted, respec_tokens, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.Name,
		record.Level,
		record.TotalXP,
		record.StatPoints,
		record.PointsGranted,
		record.RespecTokens,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func updateCharacterExec(ctx context.Context, execer sqlExecer, record storage.CharacterRecord) error {
	result, err := execer.ExecContext(ctx, `
	UPDATE characters
	SET name = ?, level = ?, total_xp = ?, stat_points = ?, points_granted = ?, respec_tokens = ?, updated_at = ?
	WHERE id = ?
	`,
		record.Name,
		record.Level,
		record.TotalXP,
		record.StatPoints,
		record.PointsGranted,
		record.RespecTokens,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update character rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func upsertStatExec(ctx context.Context, execer sqlExecer, record storage.StatRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO character_stats (character_id, stat, xp, allocated_bonus)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(character_id, stat) DO UPDATE SET
		xp = excluded.xp,
		allocated_bonus = excluded.allocated_bonus
	`,
		record.CharacterID,
		record.Stat,
		record.XP,
		record.AllocatedBonus,
	)
	if err != nil {
		return fmt.Errorf("upsert character stat: %w", err)
	}
	return nil
}

func scanCharacter(scan scanner) (storage.CharacterRecord, error) {
	var record storage.CharacterRecord
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.Name,
		&record.Level,
		&record.TotalXP,
		&record.StatPoints,
		&record.PointsGranted,
		&record.RespecTokens,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.CharacterRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanSkill(scan scanner) (storage.SkillRecord, error) {
	var record storage.SkillRecord
	var unlockedAt int64
	var lastUsedAt sql.NullInt64
	if err := scan(
		&record.CharacterID,
		&record.SkillCode,
		&unlockedAt,
		&record.TimesUsed,
		&lastUsedAt,
	); err != nil {
		return storage.SkillRecord{}, err
	}
	record.UnlockedAt = fromMillis(unlockedAt)
	if lastUsedAt.Valid {
		value := fromMillis(lastUsedAt.Int64)
		record.LastUsedAt = &value
	}
	return record, nil
}
