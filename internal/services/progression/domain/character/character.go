// Package character defines the progressing entity and its creation defaults.
package character

import (
	"strings"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
)

// StartingRespecTokens is granted at registration so a new character can
// undo one early allocation mistake.
const StartingRespecTokens = 1

const maxNameLength = 64

// Character is one progressing entity. PointsGranted tracks every stat point
// ever earned so the budget invariant stays checkable:
// StatPoints + sum of allocated node costs == PointsGranted.
type Character struct {
	ID            string
	Name          string
	Level         int
	TotalXP       int
	StatPoints    int
	PointsGranted int
	RespecTokens  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New builds a fresh level-1 character with no experience and no spendable
// points. The origin node allocation is the caller's responsibility.
func New(id string, name string, now time.Time) (Character, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Character{}, apperrors.New(apperrors.CodeValidation, "character id is required")
	}
	name, err := NormalizeName(name)
	if err != nil {
		return Character{}, err
	}
	now = now.UTC()
	return Character{
		ID:           id,
		Name:         name,
		Level:        1,
		RespecTokens: StartingRespecTokens,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeName trims and bounds a display name.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.New(apperrors.CodeValidation, "character name is required")
	}
	if len(name) > maxNameLength {
		return "", apperrors.New(apperrors.CodeValidation, "character name is too long")
	}
	return name, nil
}
