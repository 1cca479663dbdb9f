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

// ApplyActivity writes one activity grant atomically: the updated character
// totals, updated stat rows, consumed pending credits, and the appended log
// entry. A racing duplicate on (character, source, source_ref) surfaces as
// ErrConflict through the partial unique index.
func (s *Store) ApplyActivity(ctx context.Context, mutation storage.ActivityMutation) error {
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
	log, err := normalizeActivityRecord(mutation.Log)
	if err != nil {
		return err
	}

	return s.transact(ctx, "activity grant", func(tx *sql.Tx) error {
		if err := updateCharacterExec(ctx, tx, character); err != nil {
			return err
		}
		for _, statRecord := range mutation.Stats {
			if err := upsertStatExec(ctx, tx, statRecord); err != nil {
				return err
			}
		}
		for _, skillCode := range mutation.ConsumedSkills {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM pending_credits WHERE character_id = ? AND skill_code = ?",
				character.ID, skillCode); err != nil {
				return fmt.Errorf("consume pending credit: %w", err)
			}
		}
		return insertActivityExec(ctx, tx, log)
	})
}

// GetActivityBySourceRef loads one log entry by its idempotency key.
func (s *Store) GetActivityBySourceRef(ctx context.Context, characterID string, source string, sourceRef string) (storage.ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ActivityRecord{}, err
	}
	characterID = strings.TrimSpace(characterID)
	source = strings.TrimSpace(source)
	sourceRef = strings.TrimSpace(sourceRef)
	if characterID == "" {
		return storage.ActivityRecord{}, fmt.Errorf("character id is required")
	}
	if sourceRef == "" {
		return storage.ActivityRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, character_id, activity_type, source, source_ref, grant_json, occurred_at, created_at
FROM activity_log
WHERE character_id = ? AND source = ? AND source_ref = ?
`, characterID, source, sourceRef)
	record, err := scanActivity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ActivityRecord{}, storage.ErrNotFound
		}
		return storage.ActivityRecord{}, fmt.Errorf("get activity by source ref: %w", err)
	}
	return record, nil
}

// ListActivities lists one character's log newest-first with cursor
// pagination.
func (s *Store) ListActivities(ctx context.Context, characterID string, pageSize int, pageToken string) (storage.ActivityPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityPage{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ActivityPage{}, err
	}
	characterID = strings.TrimSpace(characterID)
	pageToken = strings.TrimSpace(pageToken)
	if characterID == "" {
		return storage.ActivityPage{}, fmt.Errorf("character id is required")
	}
	if pageSize <= 0 {
		return storage.ActivityPage{}, fmt.Errorf("page size must be greater than zero")
	}

	limit := pageSize + 1
	if pageToken == "" {
		rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, character_id, activity_type, source, source_ref, grant_json, occurred_at, created_at
FROM activity_log
WHERE character_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, characterID, limit)
		if err != nil {
			return storage.ActivityPage{}, fmt.Errorf("list activities: %w", err)
		}
		defer rows.Close()
		return collectActivityPage(rows, pageSize)
	}

	tokenCreatedAt, err := s.activityCreatedAtByID(ctx, characterID, pageToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ActivityPage{}, nil
		}
		return storage.ActivityPage{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, character_id, activity_type, source, source_ref, grant_json, occurred_at, created_at
FROM activity_log
WHERE character_id = ?
  AND (created_at < ? OR (created_at = ? AND id < ?))
ORDER BY created_at DESC, id DESC
LIMIT ?
`, characterID, toMillis(tokenCreatedAt), toMillis(tokenCreatedAt), pageToken, limit)
	if err != nil {
		return storage.ActivityPage{}, fmt.Errorf("list activities with token: %w", err)
	}
	defer rows.Close()
	return collectActivityPage(rows, pageSize)
}

func (s *Store) activityCreatedAtByID(ctx context.Context, characterID string, activityID string) (time.Time, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT created_at
FROM activity_log
WHERE character_id = ? AND id = ?
`, characterID, activityID)
	var createdAtMillis int64
	if err := row.Scan(&createdAtMillis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("lookup activity cursor: %w", err)
	}
	return fromMillis(createdAtMillis), nil
}

func normalizeActivityRecord(record storage.ActivityRecord) (storage.ActivityRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.CharacterID = strings.TrimSpace(record.CharacterID)
	record.ActivityType = strings.TrimSpace(record.ActivityType)
	record.Source = strings.TrimSpace(record.Source)
	record.SourceRef = strings.TrimSpace(record.SourceRef)
	record.GrantJSON = strings.TrimSpace(record.GrantJSON)
	if record.GrantJSON == "" {
		record.GrantJSON = "{}"
	}
	if record.ID == "" {
		return storage.ActivityRecord{}, fmt.Errorf("activity id is required")
	}
	if record.CharacterID == "" {
		return storage.ActivityRecord{}, fmt.Errorf("character id is required")
	}
	if record.ActivityType == "" {
		return storage.ActivityRecord{}, fmt.Errorf("activity type is required")
	}
	if record.OccurredAt.IsZero() {
		return storage.ActivityRecord{}, fmt.Errorf("occurred_at is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.ActivityRecord{}, fmt.Errorf("created_at is required")
	}
	record.OccurredAt = record.OccurredAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

func insertActivityExec(ctx context.Context, execer sqlExecer, record storage.ActivityRecord) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO activity_log (
		id, character_id, activity_type, source, source_ref, grant_json, occurred_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.CharacterID,
		record.ActivityType,
		record.Source,
		record.SourceRef,
		record.GrantJSON,
		toMillis(record.OccurredAt),
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert activity log entry: %w", err)
	}
	return nil
}

func scanActivity(scan scanner) (storage.ActivityRecord, error) {
	var record storage.ActivityRecord
	var occurredAt int64
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.CharacterID,
		&record.ActivityType,
		&record.Source,
		&record.SourceRef,
		&record.GrantJSON,
		&occurredAt,
		&createdAt,
	); err != nil {
		return storage.ActivityRecord{}, err
	}
	record.OccurredAt = fromMillis(occurredAt)
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func collectActivityPage(rows *sql.Rows, pageSize int) (storage.ActivityPage, error) {
	page := storage.ActivityPage{
		Entries: make([]storage.ActivityRecord, 0, pageSize),
	}
	for rows.Next() {
		record, err := scanActivity(rows.Scan)
		if err != nil {
			return storage.ActivityPage{}, fmt.Errorf("scan activity row: %w", err)
		}
		page.Entries = append(page.Entries, record)
	}
	if err := rows.Err(); err != nil {
		return storage.ActivityPage{}, fmt.Errorf("iterate activity rows: %w", err)
	}
	if len(page.Entries) > pageSize {
		page.NextPageToken = page.Entries[pageSize-1].ID
		page.Entries = page.Entries[:pageSize]
	}
	return page, nil
}
