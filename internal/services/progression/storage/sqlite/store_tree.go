package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

// GetNodes loads one character's allocation set.
func (s *Store) GetNodes(ctx context.Context, characterID string) ([]storage.NodeRecord, error) {
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
SELECT character_id, node_code, allocated_at
FROM character_nodes
WHERE character_id = ?
ORDER BY node_code ASC
`, characterID)
	if err != nil {
		return nil, fmt.Errorf("list character nodes: %w", err)
	}
	defer rows.Close()

	var results []storage.NodeRecord
	for rows.Next() {
		var record storage.NodeRecord
		var allocatedAt int64
		if err := rows.Scan(&record.CharacterID, &record.NodeCode, &allocatedAt); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		record.AllocatedAt = fromMillis(allocatedAt)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node rows: %w", err)
	}
	return results, nil
}

// ApplyAllocation writes one validated node allocation atomically: the
// updated character budget, updated stat bonuses, the allocation row, and
// any modifiers or skill unlocks the node grants.
func (s *Store) ApplyAllocation(ctx context.Context, mutation storage.AllocationMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	character, err := normalizeCharacterRecord(mutation.Character)
	if err != nil {
		return err
	}

	return s.transact(ctx, "node allocation", func(tx *sql.Tx) error {
		if err := updateCharacterExec(ctx, tx, character); err != nil {
			return err
		}
		for _, statRecord := range mutation.Stats {
			if err := upsertStatExec(ctx, tx, statRecord); err != nil {
				return err
			}
		}
		if err := insertNodeExec(ctx, tx, mutation.Node); err != nil {
			return err
		}
		for _, modifier := range mutation.AddModifiers {
			if err := insertModifierExec(ctx, tx, modifier); err != nil {
				return err
			}
		}
		for _, skillRecord := range mutation.AddSkills {
			if err := insertSkillExec(ctx, tx, skillRecord); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyRespec clears one character's allocations atomically, keeping only
// the listed node codes.
func (s *Store) ApplyRespec(ctx context.Context, mutation storage.RespecMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	character, err := normalizeCharacterRecord(mutation.Character)
	if err != nil {
		return err
	}

	return s.transact(ctx, "respec", func(tx *sql.Tx) error {
		if err := updateCharacterExec(ctx, tx, character); err != nil {
			return err
		}
		for _, statRecord := range mutation.Stats {
			if err := upsertStatExec(ctx, tx, statRecord); err != nil {
				return err
			}
		}

		keep := mutation.KeepNodeCodes
		query := "DELETE FROM character_nodes WHERE character_id = ?"
		args := []any{character.ID}
		if len(keep) > 0 {
			placeholders := strings.Repeat("?,", len(keep))
			query += " AND node_code NOT IN (" + placeholders[:len(placeholders)-1] + ")"
			for _, code := range keep {
				args = append(args, code)
			}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete character nodes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM character_modifiers WHERE character_id = ?", character.ID); err != nil {
			return fmt.Errorf("delete character modifiers: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM character_skills WHERE character_id = ?", character.ID); err != nil {
			return fmt.Errorf("delete character skills: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_credits WHERE character_id = ?", character.ID); err != nil {
			return fmt.Errorf("delete pending credits: %w", err)
		}
		return nil
	})
}

// ApplySkillUse updates one skill usage row and replaces its pending credit.
func (s *Store) ApplySkillUse(ctx context.Context, mutation storage.SkillUseMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	skillRecord := mutation.Skill
	skillRecord.CharacterID = strings.TrimSpace(skillRecord.CharacterID)
	skillRecord.SkillCode = strings.TrimSpace(skillRecord.SkillCode)
	if skillRecord.CharacterID == "" {
		return fmt.Errorf("character id is required")
	}
	if skillRecord.SkillCode == "" {
		return fmt.Errorf("skill code is required")
	}

	return s.transact(ctx, "skill use", func(tx *sql.Tx) error {
		var lastUsedAt sql.NullInt64
		if skillRecord.LastUsedAt != nil {
			lastUsedAt = sql.NullInt64{Int64: toMillis(*skillRecord.LastUsedAt), Valid: true}
		}
		result, err := tx.ExecContext(ctx, `
	UPDATE character_skills
	SET times_used = ?, last_used_at = ?
	WHERE character_id = ? AND skill_code = ?
	`, skillRecord.TimesUsed, lastUsedAt, skillRecord.CharacterID, skillRecord.SkillCode)
		if err != nil {
			return fmt.Errorf("update character skill: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update character skill rows affected: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}

		credit := mutation.Credit
		_, err = tx.ExecContext(ctx, `
	INSERT INTO pending_credits (character_id, skill_code, stat, amount, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(character_id, skill_code) DO UPDATE SET
		stat = excluded.stat,
		amount = excluded.amount,
		created_at = excluded.created_at
	`, credit.CharacterID, credit.SkillCode, credit.Stat, credit.Amount, toMillis(credit.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert pending credit: %w", err)
		}
		return nil
	})
}

func insertNodeExec(ctx context.Context, execer sqlExecer, record storage.NodeRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO character_nodes (character_id, node_code, allocated_at)
	VALUES (?, ?, ?)
	`, record.CharacterID, record.NodeCode, toMillis(record.AllocatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert character node: %w", err)
	}
	return nil
}

func insertModifierExec(ctx context.Context, execer sqlExecer, record storage.ModifierRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO character_modifiers (character_id, node_code, kind, multiplier, tag)
	VALUES (?, ?, ?, ?, ?)
	`, record.CharacterID, record.NodeCode, record.Kind, record.Multiplier, record.Tag)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert character modifier: %w", err)
	}
	return nil
}

func insertSkillExec(ctx context.Context, execer sqlExecer, record storage.SkillRecord) error {
	var lastUsedAt sql.NullInt64
	if record.LastUsedAt != nil {
		lastUsedAt = sql.NullInt64{Int64: toMillis(*record.LastUsedAt), Valid: true}
	}
	_, err := execer.ExecContext(ctx, `
	INSERT INTO character_skills (character_id, skill_code, unlocked_at, times_used, last_used_at)
	VALUES (?, ?, ?, ?, ?)
	`, record.CharacterID, record.SkillCode, toMillis(record.UnlockedAt), record.TimesUsed, lastUsedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert character skill: %w", err)
	}
	return nil
}
