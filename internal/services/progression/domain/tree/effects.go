package tree

import "github.com/evergrind/evergrind/internal/services/progression/domain/stat"

// Modifier is a character-level modifier contributed by an allocated node's
// xp_multiplier or special effect. Modifiers are queryable on the character
// and removed when their node is cleared by a respec.
type Modifier struct {
	NodeCode   string
	Kind       EffectKind
	Multiplier float64
	Tag        string
}

// Mutation describes the concrete state changes a node's effects produce.
// Apply and Revert build mutations; persistence applies them atomically.
type Mutation struct {
	StatDeltas      map[stat.Code]int
	AddModifiers    []Modifier
	RemoveModifiers []string // node codes whose modifiers are removed
	UnlockSkills    []string
	RemoveSkills    []string
}

// ApplyEffects builds the mutation for allocating nodeCode: every effect is
// translated in order, so a node's effects land together or not at all.
func ApplyEffects(nodeCode string, effects []Effect) Mutation {
	m := Mutation{StatDeltas: make(map[stat.Code]int)}
	for _, effect := range effects {
		switch effect.Kind {
		case EffectStatBonus:
			m.StatDeltas[effect.Stat] += effect.Value
		case EffectXPMultiplier:
			m.AddModifiers = append(m.AddModifiers, Modifier{
				NodeCode:   nodeCode,
				Kind:       EffectXPMultiplier,
				Multiplier: effect.Multiplier,
			})
		case EffectUnlockSkill:
			m.UnlockSkills = append(m.UnlockSkills, effect.SkillCode)
		case EffectSpecial:
			m.AddModifiers = append(m.AddModifiers, Modifier{
				NodeCode: nodeCode,
				Kind:     EffectSpecial,
				Tag:      effect.Tag,
			})
		}
	}
	return m
}

// RevertEffects builds the exact inverse of ApplyEffects for nodeCode, used
// by respec to undo whatever allocation applied.
func RevertEffects(nodeCode string, effects []Effect) Mutation {
	m := Mutation{StatDeltas: make(map[stat.Code]int)}
	removedModifiers := false
	for _, effect := range effects {
		switch effect.Kind {
		case EffectStatBonus:
			m.StatDeltas[effect.Stat] -= effect.Value
		case EffectXPMultiplier, EffectSpecial:
			if !removedModifiers {
				m.RemoveModifiers = append(m.RemoveModifiers, nodeCode)
				removedModifiers = true
			}
		case EffectUnlockSkill:
			m.RemoveSkills = append(m.RemoveSkills, effect.SkillCode)
		}
	}
	return m
}
