// Package tree models the allocatable stat tree: a general node/edge graph
// with typed node effects and the allocation rules that gate spending.
package tree

import (
	"fmt"
	"strings"

	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

// NodeType categorizes a tree node.
type NodeType string

const (
	NodeOrigin   NodeType = "origin"
	NodeMinor    NodeType = "minor"
	NodeNotable  NodeType = "notable"
	NodeKeystone NodeType = "keystone"
	NodeSkill    NodeType = "skill"
)

// ValidNodeType reports whether t is a known node type.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeOrigin, NodeMinor, NodeNotable, NodeKeystone, NodeSkill:
		return true
	}
	return false
}

// EffectKind discriminates the closed set of node effect variants.
type EffectKind string

const (
	EffectStatBonus    EffectKind = "stat_bonus"
	EffectXPMultiplier EffectKind = "xp_multiplier"
	EffectUnlockSkill  EffectKind = "unlock_skill"
	EffectSpecial      EffectKind = "special"
)

// Effect is one typed node effect. Exactly the fields for its Kind are set:
// stat_bonus uses Stat+Value (Value may be negative for keystone trade-offs),
// xp_multiplier uses Multiplier, unlock_skill uses SkillCode, special uses Tag.
type Effect struct {
	Kind       EffectKind
	Stat       stat.Code
	Value      int
	Multiplier float64
	SkillCode  string
	Tag        string
}

// Validate checks the effect's fields against its kind.
func (e Effect) Validate() error {
	switch e.Kind {
	case EffectStatBonus:
		if !stat.IsValid(e.Stat) {
			return fmt.Errorf("stat_bonus effect: unknown stat %q", e.Stat)
		}
		if e.Value == 0 {
			return fmt.Errorf("stat_bonus effect: value must be non-zero")
		}
	case EffectXPMultiplier:
		if e.Multiplier <= 0 {
			return fmt.Errorf("xp_multiplier effect: multiplier must be positive, got %v", e.Multiplier)
		}
	case EffectUnlockSkill:
		if strings.TrimSpace(e.SkillCode) == "" {
			return fmt.Errorf("unlock_skill effect: skill code is required")
		}
	case EffectSpecial:
		if strings.TrimSpace(e.Tag) == "" {
			return fmt.Errorf("special effect: tag is required")
		}
	default:
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
	return nil
}

// Node is one static tree element. Nodes are content data: the engine never
// mutates them at runtime.
type Node struct {
	Code           string
	Name           string
	Type           NodeType
	Branch         string
	RequiredPoints int
	Prerequisites  []string
	Effects        []Effect
}

// Edge marks direct adjacency between two nodes. Edges are symmetric; the
// pair is unordered.
type Edge struct {
	A string
	B string
}
