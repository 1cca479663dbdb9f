package domain

import (
	"context"
	"strings"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/domain/tree"
	"github.com/evergrind/evergrind/internal/services/progression/notify"
	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

// RespecResult summarizes one full tree reset.
type RespecResult struct {
	NodesCleared    int
	PointsRefunded  int
	TokensRemaining int
}

// Respec clears every non-origin allocation in one atomic operation: stat
// bonuses revert, granted skills and modifiers disappear, spent points
// return to the budget, and one respec token is consumed.
func (s *Service) Respec(ctx context.Context, characterID string) (RespecResult, error) {
	if s == nil || s.store == nil {
		return RespecResult{}, errStoreNotConfigured
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return RespecResult{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}

	unlock := s.locks.Lock(characterID)
	defer unlock()

	record, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return RespecResult{}, mapCharacterErr(err, characterID)
	}
	if record.RespecTokens <= 0 {
		return RespecResult{}, apperrors.WithMetadata(apperrors.CodeNoRespecTokens,
			"no respec tokens available",
			map[string]string{"character_id": characterID})
	}

	nodeRecords, err := s.store.GetNodes(ctx, characterID)
	if err != nil {
		return RespecResult{}, err
	}

	graph := s.catalog.Graph
	originCode := graph.Origin().Code
	refunded := 0
	cleared := 0
	deltas := map[stat.Code]int{}
	for _, row := range nodeRecords {
		if row.NodeCode == originCode {
			continue
		}
		node, ok := graph.Node(row.NodeCode)
		if !ok {
			// Allocation from a retired catalog node: nothing to revert
			// beyond removing the row.
			cleared++
			continue
		}
		revert := tree.RevertEffects(node.Code, node.Effects)
		for code, delta := range revert.StatDeltas {
			deltas[code] += delta
		}
		refunded += node.RequiredPoints
		cleared++
	}

	statRecords, err := s.store.GetStats(ctx, characterID)
	if err != nil {
		return RespecResult{}, err
	}
	updatedStats := applyStatDeltas(characterID, statRecords, deltas)

	record.StatPoints += refunded
	record.RespecTokens--
	record.UpdatedAt = s.nowUTC()

	err = s.store.ApplyRespec(ctx, storage.RespecMutation{
		Character:     record,
		Stats:         updatedStats,
		KeepNodeCodes: []string{originCode},
	})
	if err != nil {
		return RespecResult{}, err
	}

	s.dispatcher.Dispatch([]notify.Event{{
		Kind:        notify.KindRespecPerformed,
		CharacterID: characterID,
	}})

	return RespecResult{
		NodesCleared:    cleared,
		PointsRefunded:  refunded,
		TokensRemaining: record.RespecTokens,
	}, nil
}
