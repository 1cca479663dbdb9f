package domain

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/domain/tree"
	"github.com/evergrind/evergrind/internal/services/progression/notify"
	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

// AllocateResult summarizes one successful node allocation.
type AllocateResult struct {
	NodeCode        string
	PointsRemaining int
	UnlockedSkills  []string
}

// AllocateNode spends stat points on one tree node. The node must be
// affordable, adjacent to an already-allocated node, and have all of its
// prerequisites allocated; on success every effect of the node applies
// atomically.
func (s *Service) AllocateNode(ctx context.Context, characterID string, nodeCode string) (AllocateResult, error) {
	if s == nil || s.store == nil {
		return AllocateResult{}, errStoreNotConfigured
	}
	characterID = strings.TrimSpace(characterID)
	nodeCode = strings.TrimSpace(nodeCode)
	if characterID == "" {
		return AllocateResult{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	if nodeCode == "" {
		return AllocateResult{}, apperrors.New(apperrors.CodeValidation, "node code is required")
	}

	unlock := s.locks.Lock(characterID)
	defer unlock()

	record, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return AllocateResult{}, mapCharacterErr(err, characterID)
	}
	nodeRecords, err := s.store.GetNodes(ctx, characterID)
	if err != nil {
		return AllocateResult{}, err
	}
	allocated := make(map[string]bool, len(nodeRecords))
	for _, row := range nodeRecords {
		allocated[row.NodeCode] = true
	}

	graph := s.catalog.Graph
	if err := graph.ValidateAllocation(nodeCode, allocated, record.StatPoints); err != nil {
		return AllocateResult{}, err
	}
	node, ok := graph.Node(nodeCode)
	if !ok {
		return AllocateResult{}, apperrors.New(apperrors.CodeNotFound,
			fmt.Sprintf("node %s is not in the tree", nodeCode))
	}

	mutation := tree.ApplyEffects(node.Code, node.Effects)
	statRecords, err := s.store.GetStats(ctx, characterID)
	if err != nil {
		return AllocateResult{}, err
	}
	updatedStats := applyStatDeltas(characterID, statRecords, mutation.StatDeltas)

	now := s.nowUTC()
	record.StatPoints -= node.RequiredPoints
	record.UpdatedAt = now

	write := storage.AllocationMutation{
		Character: record,
		Stats:     updatedStats,
		Node: storage.NodeRecord{
			CharacterID: characterID,
			NodeCode:    node.Code,
			AllocatedAt: now,
		},
	}
	for _, modifier := range mutation.AddModifiers {
		write.AddModifiers = append(write.AddModifiers, storage.ModifierRecord{
			CharacterID: characterID,
			NodeCode:    modifier.NodeCode,
			Kind:        string(modifier.Kind),
			Multiplier:  modifier.Multiplier,
			Tag:         modifier.Tag,
		})
	}
	for _, skillCode := range mutation.UnlockSkills {
		write.AddSkills = append(write.AddSkills, storage.SkillRecord{
			CharacterID: characterID,
			SkillCode:   skillCode,
			UnlockedAt:  now,
		})
	}
	if err := s.store.ApplyAllocation(ctx, write); err != nil {
		return AllocateResult{}, err
	}

	events := []notify.Event{{
		Kind:        notify.KindNodeAllocated,
		CharacterID: characterID,
		NodeCode:    node.Code,
	}}
	for _, skillCode := range mutation.UnlockSkills {
		events = append(events, notify.Event{
			Kind:        notify.KindSkillUnlocked,
			CharacterID: characterID,
			SkillCode:   skillCode,
		})
	}
	s.dispatcher.Dispatch(events)

	return AllocateResult{
		NodeCode:        node.Code,
		PointsRemaining: record.StatPoints,
		UnlockedSkills:  mutation.UnlockSkills,
	}, nil
}

// applyStatDeltas folds signed bonus deltas into the stat rows, creating
// rows for stats the character has never earned XP in.
func applyStatDeltas(characterID string, statRecords []storage.StatRecord, deltas map[stat.Code]int) []storage.StatRecord {
	if len(deltas) == 0 {
		return nil
	}
	byCode := make(map[stat.Code]storage.StatRecord, len(statRecords))
	for _, row := range statRecords {
		byCode[stat.Code(row.Stat)] = row
	}
	var updated []storage.StatRecord
	for _, code := range stat.Codes() {
		delta, ok := deltas[code]
		if !ok || delta == 0 {
			continue
		}
		row, ok := byCode[code]
		if !ok {
			row = storage.StatRecord{CharacterID: characterID, Stat: string(code)}
		}
		row.AllocatedBonus += delta
		updated = append(updated, row)
	}
	return updated
}
