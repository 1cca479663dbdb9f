// Package domain orchestrates the progression engine: activity ingestion,
// the experience ledger, tree allocation, skill usage, and respec, all
// serialized per character against the storage boundary.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/platform/id"
	"github.com/evergrind/evergrind/internal/services/progression/content"
	"github.com/evergrind/evergrind/internal/services/progression/domain/character"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/domain/tree"
	"github.com/evergrind/evergrind/internal/services/progression/notify"
	"github.com/evergrind/evergrind/internal/services/progression/storage"
)

var errStoreNotConfigured = errors.New("progression store is not configured")

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Service orchestrates character progression use-cases.
type Service struct {
	store      storage.Store
	catalog    content.Bundle
	dispatcher *notify.Dispatcher
	locks      *keyedMutex
	clock      func() time.Time
	newID      func() (string, error)
}

// NewService constructs the progression engine over a validated catalog.
func NewService(store storage.Store, catalog content.Bundle, dispatcher *notify.Dispatcher, clock func() time.Time, newID func() (string, error)) *Service {
	if dispatcher == nil {
		dispatcher = notify.NewDispatcher(nil, 0)
	}
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:      store,
		catalog:    catalog,
		dispatcher: dispatcher,
		locks:      newKeyedMutex(),
		clock:      clock,
		newID:      newID,
	}
}

// StatView is one core stat with base, bonus, and total values.
type StatView struct {
	Code           stat.Code
	XP             int64
	Level          int
	BaseValue      int
	AllocatedBonus int
	Total          int
}

// SkillView is one unlocked skill with its usage state.
type SkillView struct {
	Code       string
	Name       string
	Domain     stat.Code
	TimesUsed  int
	LastUsedAt *time.Time
	ReadyAt    time.Time
}

// ModifierView is one active character-level modifier.
type ModifierView struct {
	NodeCode   string
	Kind       tree.EffectKind
	Multiplier float64
	Tag        string
}

// CharacterView is the full read model for one character.
type CharacterView struct {
	ID             string
	Name           string
	Level          int
	TotalXP        int64
	NextLevelXP    int64
	StatPoints     int
	PointsGranted  int
	RespecTokens   int
	Stats          []StatView
	Derived        map[stat.DerivedCode]float64
	Modifiers      []ModifierView
	Skills         []SkillView
	AllocatedNodes []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TreeNodeView is one static tree node, optionally overlaid with a
// character's allocation state.
type TreeNodeView struct {
	Code          string
	Name          string
	Type          tree.NodeType
	Branch        string
	Cost          int
	Prerequisites []string
	Effects       []tree.Effect
	Allocated     bool
}

// TreeView is the static graph plus one character's allocated subset.
type TreeView struct {
	Nodes []TreeNodeView
	Edges []tree.Edge
}

// RegisterCharacter creates a level-1 character with its stat rows and the
// auto-allocated origin node.
func (s *Service) RegisterCharacter(ctx context.Context, name string) (CharacterView, error) {
	if s == nil || s.store == nil {
		return CharacterView{}, errStoreNotConfigured
	}
	characterID, err := s.newID()
	if err != nil {
		return CharacterView{}, err
	}
	c, err := character.New(characterID, name, s.nowUTC())
	if err != nil {
		return CharacterView{}, err
	}
	if err := s.createCharacter(ctx, c); err != nil {
		return CharacterView{}, err
	}
	return s.loadView(ctx, c.ID)
}

func (s *Service) createCharacter(ctx context.Context, c character.Character) error {
	record := storage.CharacterRecord{
		ID:            c.ID,
		Name:          c.Name,
		Level:         c.Level,
		TotalXP:       int64(c.TotalXP),
		StatPoints:    c.StatPoints,
		PointsGranted: c.PointsGranted,
		RespecTokens:  c.RespecTokens,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	stats := make([]storage.StatRecord, 0, len(stat.Codes()))
	for _, code := range stat.Codes() {
		stats = append(stats, storage.StatRecord{CharacterID: c.ID, Stat: string(code)})
	}
	origin := storage.NodeRecord{
		CharacterID: c.ID,
		NodeCode:    s.catalog.Graph.Origin().Code,
		AllocatedAt: c.CreatedAt,
	}
	if err := s.store.CreateCharacter(ctx, record, stats, origin); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return apperrors.Wrap(apperrors.CodeValidation, "character already exists", err)
		}
		return err
	}
	return nil
}

// GetCharacter returns the full read model for one character, including
// derived stats computed from current totals.
func (s *Service) GetCharacter(ctx context.Context, characterID string) (CharacterView, error) {
	if s == nil || s.store == nil {
		return CharacterView{}, errStoreNotConfigured
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return CharacterView{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	return s.loadView(ctx, characterID)
}

func (s *Service) loadView(ctx context.Context, characterID string) (CharacterView, error) {
	record, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return CharacterView{}, mapCharacterErr(err, characterID)
	}
	statRecords, err := s.store.GetStats(ctx, characterID)
	if err != nil {
		return CharacterView{}, err
	}
	nodeRecords, err := s.store.GetNodes(ctx, characterID)
	if err != nil {
		return CharacterView{}, err
	}
	modifierRecords, err := s.store.GetModifiers(ctx, characterID)
	if err != nil {
		return CharacterView{}, err
	}
	skillRecords, err := s.store.GetSkills(ctx, characterID)
	if err != nil {
		return CharacterView{}, err
	}

	statsByCode := make(map[stat.Code]storage.StatRecord, len(statRecords))
	for _, row := range statRecords {
		statsByCode[stat.Code(row.Stat)] = row
	}

	view := CharacterView{
		ID:            record.ID,
		Name:          record.Name,
		Level:         record.Level,
		TotalXP:       record.TotalXP,
		StatPoints:    record.StatPoints,
		PointsGranted: record.PointsGranted,
		RespecTokens:  record.RespecTokens,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if next, ok := s.catalog.Ledger.NextCharacterThreshold(record.TotalXP); ok {
		view.NextLevelXP = next.XP
	}

	totals := make(stat.Totals, len(stat.Codes()))
	for _, code := range stat.Codes() {
		row := statsByCode[code]
		base := s.catalog.Ledger.StatBaseValue(row.XP)
		total := base + row.AllocatedBonus
		totals[code] = total
		view.Stats = append(view.Stats, StatView{
			Code:           code,
			XP:             row.XP,
			Level:          s.catalog.Ledger.StatLevel(row.XP),
			BaseValue:      base,
			AllocatedBonus: row.AllocatedBonus,
			Total:          total,
		})
	}
	view.Derived = stat.ComputeDerived(totals)

	for _, node := range nodeRecords {
		view.AllocatedNodes = append(view.AllocatedNodes, node.NodeCode)
	}
	for _, modifier := range modifierRecords {
		view.Modifiers = append(view.Modifiers, ModifierView{
			NodeCode:   modifier.NodeCode,
			Kind:       tree.EffectKind(modifier.Kind),
			Multiplier: modifier.Multiplier,
			Tag:        modifier.Tag,
		})
	}
	for _, row := range skillRecords {
		skillView := SkillView{
			Code:       row.SkillCode,
			TimesUsed:  row.TimesUsed,
			LastUsedAt: row.LastUsedAt,
		}
		if definition, ok := s.catalog.Skill(row.SkillCode); ok {
			skillView.Name = definition.Name
			skillView.Domain = definition.Domain
			if row.LastUsedAt != nil {
				skillView.ReadyAt = row.LastUsedAt.Add(definition.Cooldown)
			}
		}
		view.Skills = append(view.Skills, skillView)
	}
	return view, nil
}

// GetTree returns the static graph. When characterID is non-empty the
// character's allocated subset is overlaid on the nodes.
func (s *Service) GetTree(ctx context.Context, characterID string) (TreeView, error) {
	if s == nil || s.store == nil {
		return TreeView{}, errStoreNotConfigured
	}

	allocated := map[string]bool{}
	characterID = strings.TrimSpace(characterID)
	if characterID != "" {
		if _, err := s.store.GetCharacter(ctx, characterID); err != nil {
			return TreeView{}, mapCharacterErr(err, characterID)
		}
		nodes, err := s.store.GetNodes(ctx, characterID)
		if err != nil {
			return TreeView{}, err
		}
		for _, node := range nodes {
			allocated[node.NodeCode] = true
		}
	}

	graph := s.catalog.Graph
	view := TreeView{Edges: graph.Edges()}
	for _, node := range graph.Nodes() {
		view.Nodes = append(view.Nodes, TreeNodeView{
			Code:          node.Code,
			Name:          node.Name,
			Type:          node.Type,
			Branch:        node.Branch,
			Cost:          node.RequiredPoints,
			Prerequisites: node.Prerequisites,
			Effects:       node.Effects,
			Allocated:     allocated[node.Code],
		})
	}
	return view, nil
}

// GrantRespecTokens adds respec tokens to one character and returns the new
// balance.
func (s *Service) GrantRespecTokens(ctx context.Context, characterID string, tokens int) (int, error) {
	if s == nil || s.store == nil {
		return 0, errStoreNotConfigured
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return 0, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	if tokens <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "token count must be positive")
	}

	unlock := s.locks.Lock(characterID)
	defer unlock()

	record, err := s.store.GrantRespecTokens(ctx, characterID, tokens, s.nowUTC())
	if err != nil {
		return 0, mapCharacterErr(err, characterID)
	}
	return record.RespecTokens, nil
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

func mapCharacterErr(err error, characterID string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("character %s does not exist", characterID),
			map[string]string{"character_id": characterID})
	}
	return err
}
