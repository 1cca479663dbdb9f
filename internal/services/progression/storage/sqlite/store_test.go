package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateAndGetCharacter(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateCharacter(ctx, testCharacter("char-1", now), testStats("char-1"), originNode("char-1", now)); err != nil {
		t.Fatalf("create character: %v", err)
	}

	got, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Name != "Rowan" || got.Level != 1 || got.RespecTokens != 1 {
		t.Fatalf("unexpected character: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %s, got %s", now, got.CreatedAt)
	}

	stats, err := store.GetStats(ctx, "char-1")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if len(stats) != 6 {
		t.Fatalf("expected 6 stat rows, got %d", len(stats))
	}

	nodes, err := store.GetNodes(ctx, "char-1")
	if err != nil {
		t.Fatalf("get nodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].NodeCode != "origin" {
		t.Fatalf("expected origin allocation, got %+v", nodes)
	}

	if _, err := store.GetCharacter(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.CreateCharacter(ctx, testCharacter("char-1", now), testStats("char-1"), originNode("char-1", now)); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
	}
}

func TestApplyActivityAndIdempotencyIndex(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCharacter(t, store, "char-1", now)

	character, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	character.TotalXP = 250
	character.Level = 2
	character.StatPoints = 1
	character.PointsGranted = 1
	character.UpdatedAt = now.Add(time.Minute)

	mutation := storage.ActivityMutation{
		Character: character,
		Stats: []storage.StatRecord{
			{CharacterID: "char-1", Stat: "STR", XP: 250},
		},
		Log: storage.ActivityRecord{
			ID:           "act-1",
			CharacterID:  "char-1",
			ActivityType: "workout",
			Source:       "scheduler",
			SourceRef:    "task-99",
			GrantJSON:    `{"xp_granted":{"STR":250}}`,
			OccurredAt:   now,
			CreatedAt:    now.Add(time.Minute),
		},
	}
	if err := store.ApplyActivity(ctx, mutation); err != nil {
		t.Fatalf("apply activity: %v", err)
	}

	got, err := store.GetActivityBySourceRef(ctx, "char-1", "scheduler", "task-99")
	if err != nil {
		t.Fatalf("get activity by source ref: %v", err)
	}
	if got.GrantJSON != `{"xp_granted":{"STR":250}}` {
		t.Fatalf("unexpected grant json: %s", got.GrantJSON)
	}

	// Same idempotency key must hit the partial unique index.
	mutation.Log.ID = "act-2"
	if err := store.ApplyActivity(ctx, mutation); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate source ref, got %v", err)
	}

	// A conflicting write must not leave partial state behind.
	updated, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if updated.TotalXP != 250 {
		t.Fatalf("expected total xp 250 after one grant, got %d", updated.TotalXP)
	}

	// Blank source refs never participate in idempotency.
	mutation.Log.ID = "act-3"
	mutation.Log.SourceRef = ""
	if err := store.ApplyActivity(ctx, mutation); err != nil {
		t.Fatalf("apply activity without source ref: %v", err)
	}
	mutation.Log.ID = "act-4"
	if err := store.ApplyActivity(ctx, mutation); err != nil {
		t.Fatalf("apply second activity without source ref: %v", err)
	}
	if _, err := store.GetActivityBySourceRef(ctx, "char-1", "scheduler", ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank source ref, got %v", err)
	}
}

func TestListActivitiesPagination(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCharacter(t, store, "char-1", now)

	character, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	for i := 0; i < 5; i++ {
		createdAt := now.Add(time.Duration(i) * time.Minute)
		character.UpdatedAt = createdAt
		err := store.ApplyActivity(ctx, storage.ActivityMutation{
			Character: character,
			Log: storage.ActivityRecord{
				ID:           "act-" + string(rune('a'+i)),
				CharacterID:  "char-1",
				ActivityType: "workout",
				OccurredAt:   createdAt,
				CreatedAt:    createdAt,
			},
		})
		if err != nil {
			t.Fatalf("apply activity %d: %v", i, err)
		}
	}

	first, err := store.ListActivities(ctx, "char-1", 2, "")
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Entries) != 2 || first.NextPageToken == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	if first.Entries[0].ID != "act-e" || first.Entries[1].ID != "act-d" {
		t.Fatalf("expected newest first, got %+v", first.Entries)
	}

	second, err := store.ListActivities(ctx, "char-1", 2, first.NextPageToken)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Entries) != 2 || second.Entries[0].ID != "act-c" {
		t.Fatalf("unexpected second page: %+v", second.Entries)
	}

	third, err := store.ListActivities(ctx, "char-1", 2, second.NextPageToken)
	if err != nil {
		t.Fatalf("list third page: %v", err)
	}
	if len(third.Entries) != 1 || third.NextPageToken != "" {
		t.Fatalf("unexpected third page: %+v", third)
	}
}

func TestApplyAllocationAndRespec(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCharacter(t, store, "char-1", now)

	character, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	character.StatPoints = 0
	character.PointsGranted = 2
	character.UpdatedAt = now.Add(time.Minute)

	err = store.ApplyAllocation(ctx, storage.AllocationMutation{
		Character: character,
		Stats: []storage.StatRecord{
			{CharacterID: "char-1", Stat: "STR", AllocatedBonus: 5},
		},
		Node: storage.NodeRecord{CharacterID: "char-1", NodeCode: "might_1", AllocatedAt: now.Add(time.Minute)},
		AddModifiers: []storage.ModifierRecord{
			{CharacterID: "char-1", NodeCode: "might_1", Kind: "xp_multiplier", Multiplier: 1.1},
		},
		AddSkills: []storage.SkillRecord{
			{CharacterID: "char-1", SkillCode: "surge", UnlockedAt: now.Add(time.Minute)},
		},
	})
	if err != nil {
		t.Fatalf("apply allocation: %v", err)
	}

	nodes, err := store.GetNodes(ctx, "char-1")
	if err != nil {
		t.Fatalf("get nodes: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected origin + might_1, got %+v", nodes)
	}
	modifiers, err := store.GetModifiers(ctx, "char-1")
	if err != nil {
		t.Fatalf("get modifiers: %v", err)
	}
	if len(modifiers) != 1 || modifiers[0].Multiplier != 1.1 {
		t.Fatalf("unexpected modifiers: %+v", modifiers)
	}
	if _, err := store.GetSkill(ctx, "char-1", "surge"); err != nil {
		t.Fatalf("get skill: %v", err)
	}

	// Re-allocating the same node conflicts and rolls everything back.
	if err := store.ApplyAllocation(ctx, storage.AllocationMutation{
		Character: character,
		Node:      storage.NodeRecord{CharacterID: "char-1", NodeCode: "might_1", AllocatedAt: now},
	}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	character.StatPoints = 2
	character.UpdatedAt = now.Add(2 * time.Minute)
	err = store.ApplyRespec(ctx, storage.RespecMutation{
		Character: character,
		Stats: []storage.StatRecord{
			{CharacterID: "char-1", Stat: "STR", AllocatedBonus: 0},
		},
		KeepNodeCodes: []string{"origin"},
	})
	if err != nil {
		t.Fatalf("apply respec: %v", err)
	}

	nodes, err = store.GetNodes(ctx, "char-1")
	if err != nil {
		t.Fatalf("get nodes after respec: %v", err)
	}
	if len(nodes) != 1 || nodes[0].NodeCode != "origin" {
		t.Fatalf("expected only origin after respec, got %+v", nodes)
	}
	modifiers, err = store.GetModifiers(ctx, "char-1")
	if err != nil {
		t.Fatalf("get modifiers after respec: %v", err)
	}
	if len(modifiers) != 0 {
		t.Fatalf("expected no modifiers after respec, got %+v", modifiers)
	}
	skills, err := store.GetSkills(ctx, "char-1")
	if err != nil {
		t.Fatalf("get skills after respec: %v", err)
	}
	if len(skills) != 0 {
		t.Fatalf("expected no skills after respec, got %+v", skills)
	}
}

func TestApplySkillUseAndCredits(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCharacter(t, store, "char-1", now)

	character, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	err = store.ApplyAllocation(ctx, storage.AllocationMutation{
		Character: character,
		Node:      storage.NodeRecord{CharacterID: "char-1", NodeCode: "might_skill", AllocatedAt: now},
		AddSkills: []storage.SkillRecord{
			{CharacterID: "char-1", SkillCode: "surge", UnlockedAt: now},
		},
	})
	if err != nil {
		t.Fatalf("allocate skill node: %v", err)
	}

	usedAt := now.Add(time.Hour)
	err = store.ApplySkillUse(ctx, storage.SkillUseMutation{
		Skill: storage.SkillRecord{
			CharacterID: "char-1",
			SkillCode:   "surge",
			TimesUsed:   1,
			LastUsedAt:  &usedAt,
		},
		Credit: storage.CreditRecord{
			CharacterID: "char-1",
			SkillCode:   "surge",
			Stat:        "STR",
			Amount:      50,
			CreatedAt:   usedAt,
		},
	})
	if err != nil {
		t.Fatalf("apply skill use: %v", err)
	}

	got, err := store.GetSkill(ctx, "char-1", "surge")
	if err != nil {
		t.Fatalf("get skill: %v", err)
	}
	if got.TimesUsed != 1 || got.LastUsedAt == nil || !got.LastUsedAt.Equal(usedAt) {
		t.Fatalf("unexpected skill row: %+v", got)
	}

	credits, err := store.GetCredits(ctx, "char-1")
	if err != nil {
		t.Fatalf("get credits: %v", err)
	}
	if len(credits) != 1 || credits[0].Amount != 50 || credits[0].Stat != "STR" {
		t.Fatalf("unexpected credits: %+v", credits)
	}

	// Consuming through an activity removes the credit.
	character.UpdatedAt = usedAt
	err = store.ApplyActivity(ctx, storage.ActivityMutation{
		Character:      character,
		ConsumedSkills: []string{"surge"},
		Log: storage.ActivityRecord{
			ID:           "act-1",
			CharacterID:  "char-1",
			ActivityType: "workout",
			OccurredAt:   usedAt,
			CreatedAt:    usedAt,
		},
	})
	if err != nil {
		t.Fatalf("apply consuming activity: %v", err)
	}
	credits, err = store.GetCredits(ctx, "char-1")
	if err != nil {
		t.Fatalf("get credits after consume: %v", err)
	}
	if len(credits) != 0 {
		t.Fatalf("expected consumed credits, got %+v", credits)
	}

	// Using a skill that was never unlocked is not found.
	err = store.ApplySkillUse(ctx, storage.SkillUseMutation{
		Skill:  storage.SkillRecord{CharacterID: "char-1", SkillCode: "ghost", TimesUsed: 1},
		Credit: storage.CreditRecord{CharacterID: "char-1", SkillCode: "ghost", Stat: "STR", Amount: 1, CreatedAt: usedAt},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantRespecTokens(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedCharacter(t, store, "char-1", now)

	got, err := store.GrantRespecTokens(ctx, "char-1", 2, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("grant tokens: %v", err)
	}
	if got.RespecTokens != 3 {
		t.Fatalf("expected 3 tokens, got %d", got.RespecTokens)
	}

	if _, err := store.GrantRespecTokens(ctx, "missing", 1, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GrantRespecTokens(ctx, "char-1", 0, now); err == nil {
		t.Fatal("expected error for zero token grant")
	}
}

func testCharacter(id string, now time.Time) storage.CharacterRecord {
	return storage.CharacterRecord{
		ID:           id,
		Name:         "Rowan",
		Level:        1,
		RespecTokens: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testStats(characterID string) []storage.StatRecord {
	codes := []string{"AGI", "CHA", "END", "INT", "STR", "WIS"}
	stats := make([]storage.StatRecord, 0, len(codes))
	for _, code := range codes {
		stats = append(stats, storage.StatRecord{CharacterID: characterID, Stat: code})
	}
	return stats
}

func originNode(characterID string, now time.Time) storage.NodeRecord {
	return storage.NodeRecord{CharacterID: characterID, NodeCode: "origin", AllocatedAt: now}
}

func seedCharacter(t *testing.T, store *Store, id string, now time.Time) {
	t.Helper()
	if err := store.CreateCharacter(context.Background(), testCharacter(id, now), testStats(id), originNode(id, now)); err != nil {
		t.Fatalf("seed character: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "progression.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}
