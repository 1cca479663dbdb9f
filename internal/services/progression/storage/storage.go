// Package storage defines the persistence boundary for progression state.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write violated a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// CharacterRecord is one persisted character row. PointsGranted is the
// lifetime stat-point total; StatPoints is the unspent remainder.
type CharacterRecord struct {
	ID            string
	Name          string
	Level         int
	TotalXP       int64
	StatPoints    int
	PointsGranted int
	RespecTokens  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatRecord is one persisted per-character stat row.
type StatRecord struct {
	CharacterID    string
	Stat           string
	XP             int64
	AllocatedBonus int
}

// NodeRecord is one persisted tree allocation.
type NodeRecord struct {
	CharacterID string
	NodeCode    string
	AllocatedAt time.Time
}

// ModifierRecord is one active character-level modifier contributed by an
// allocated node.
type ModifierRecord struct {
	CharacterID string
	NodeCode    string
	Kind        string
	Multiplier  float64
	Tag         string
}

// SkillRecord is one per-character skill unlock.
type SkillRecord struct {
	CharacterID string
	SkillCode   string
	UnlockedAt  time.Time
	TimesUsed   int
	LastUsedAt  *time.Time
}

// CreditRecord is one pending bonus-XP credit produced by skill use.
type CreditRecord struct {
	CharacterID string
	SkillCode   string
	Stat        string
	Amount      int
	CreatedAt   time.Time
}

// ActivityRecord is one immutable activity log entry. GrantJSON carries the
// recorded grant summary so idempotent replays return the original result.
type ActivityRecord struct {
	ID           string
	CharacterID  string
	ActivityType string
	Source       string
	SourceRef    string
	GrantJSON    string
	OccurredAt   time.Time
	CreatedAt    time.Time
}

// ActivityPage is one page of log entries, newest first.
type ActivityPage struct {
	Entries       []ActivityRecord
	NextPageToken string
}

// ActivityMutation is the single-transaction write produced by an activity
// grant: updated character totals, updated stat rows, consumed pending
// credits, and the appended log entry.
type ActivityMutation struct {
	Character      CharacterRecord
	Stats          []StatRecord
	ConsumedSkills []string
	Log            ActivityRecord
}

// AllocationMutation is the single-transaction write produced by a node
// allocation.
type AllocationMutation struct {
	Character    CharacterRecord
	Stats        []StatRecord
	Node         NodeRecord
	AddModifiers []ModifierRecord
	AddSkills    []SkillRecord
}

// SkillUseMutation updates one skill usage row and replaces its pending
// credit.
type SkillUseMutation struct {
	Skill  SkillRecord
	Credit CreditRecord
}

// RespecMutation clears a character's allocations in one transaction.
// Every node except KeepNodeCodes is removed, along with all modifiers,
// skill unlocks, and pending credits.
type RespecMutation struct {
	Character     CharacterRecord
	Stats         []StatRecord
	KeepNodeCodes []string
}

// Store is the progression persistence boundary. Compound mutations apply
// atomically: either every row change lands or none do.
type Store interface {
	CreateCharacter(ctx context.Context, character CharacterRecord, stats []StatRecord, origin NodeRecord) error
	GetCharacter(ctx context.Context, id string) (CharacterRecord, error)
	GetStats(ctx context.Context, characterID string) ([]StatRecord, error)
	GetNodes(ctx context.Context, characterID string) ([]NodeRecord, error)
	GetModifiers(ctx context.Context, characterID string) ([]ModifierRecord, error)
	GetSkills(ctx context.Context, characterID string) ([]SkillRecord, error)
	GetSkill(ctx context.Context, characterID string, skillCode string) (SkillRecord, error)
	GetCredits(ctx context.Context, characterID string) ([]CreditRecord, error)
	GetActivityBySourceRef(ctx context.Context, characterID string, source string, sourceRef string) (ActivityRecord, error)
	ListActivities(ctx context.Context, characterID string, pageSize int, pageToken string) (ActivityPage, error)

	ApplyActivity(ctx context.Context, mutation ActivityMutation) error
	ApplyAllocation(ctx context.Context, mutation AllocationMutation) error
	ApplySkillUse(ctx context.Context, mutation SkillUseMutation) error
	ApplyRespec(ctx context.Context, mutation RespecMutation) error
	GrantRespecTokens(ctx context.Context, characterID string, tokens int, now time.Time) (CharacterRecord, error)
}
