// Package content loads and validates the progression catalog: leveling
// curves, the stat tree, skills, and activity XP defaults. The catalog is
// reference data authored outside this service; a malformed catalog fails
// at load time, never at runtime.
package content

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evergrind/evergrind/internal/services/progression/domain/activity"
	"github.com/evergrind/evergrind/internal/services/progression/domain/level"
	"github.com/evergrind/evergrind/internal/services/progression/domain/skill"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/domain/tree"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the raw YAML document shape.
type Catalog struct {
	Levels struct {
		Character []thresholdDoc `yaml:"character"`
		Stat      struct {
			Floor      int            `yaml:"floor"`
			Thresholds []thresholdDoc `yaml:"thresholds"`
		} `yaml:"stat"`
	} `yaml:"levels"`
	Tree struct {
		Nodes []nodeDoc   `yaml:"nodes"`
		Edges [][2]string `yaml:"edges"`
	} `yaml:"tree"`
	Skills     []skillDoc                `yaml:"skills"`
	Activities map[string]map[string]int `yaml:"activities"`
}

type thresholdDoc struct {
	Level  int   `yaml:"level"`
	XP     int64 `yaml:"xp"`
	Points int   `yaml:"points"`
}

type nodeDoc struct {
	Code          string      `yaml:"code"`
	Name          string      `yaml:"name"`
	Type          string      `yaml:"type"`
	Branch        string      `yaml:"branch"`
	Cost          int         `yaml:"cost"`
	Prerequisites []string    `yaml:"prerequisites"`
	Effects       []effectDoc `yaml:"effects"`
}

type effectDoc struct {
	Kind       string  `yaml:"kind"`
	Stat       string  `yaml:"stat"`
	Value      int     `yaml:"value"`
	Multiplier float64 `yaml:"multiplier"`
	Skill      string  `yaml:"skill"`
	Tag        string  `yaml:"tag"`
}

type skillDoc struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Domain   string `yaml:"domain"`
	Cooldown string `yaml:"cooldown"`
	BonusXP  int    `yaml:"bonus_xp"`
}

// Bundle is the validated, ready-to-serve catalog.
type Bundle struct {
	Ledger     level.Ledger
	Graph      *tree.Graph
	Skills     map[string]skill.Skill
	Activities activity.Table
}

// Skill looks up one skill definition by code.
func (b Bundle) Skill(code string) (skill.Skill, bool) {
	s, ok := b.Skills[code]
	return s, ok
}

// Default builds the bundled catalog shipped with the engine.
func Default() (Bundle, error) {
	return Parse(defaultCatalog)
}

// Load reads and validates a catalog file.
func Load(path string) (Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse validates a raw catalog document and builds the serving bundle.
func Parse(raw []byte) (Bundle, error) {
	var doc Catalog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Bundle{}, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return doc.build()
}

func (c Catalog) build() (Bundle, error) {
	characterTable, err := level.NewTable(toThresholds(c.Levels.Character))
	if err != nil {
		return Bundle{}, fmt.Errorf("character level curve: %w", err)
	}
	statTable, err := level.NewTable(toThresholds(c.Levels.Stat.Thresholds))
	if err != nil {
		return Bundle{}, fmt.Errorf("stat level curve: %w", err)
	}
	if c.Levels.Stat.Floor <= 0 {
		return Bundle{}, fmt.Errorf("stat floor must be positive, got %d", c.Levels.Stat.Floor)
	}
	ledger := level.NewLedger(characterTable, statTable, c.Levels.Stat.Floor)

	skills := make(map[string]skill.Skill, len(c.Skills))
	for _, doc := range c.Skills {
		s, err := doc.toSkill()
		if err != nil {
			return Bundle{}, err
		}
		if _, ok := skills[s.Code]; ok {
			return Bundle{}, fmt.Errorf("duplicate skill code %q", s.Code)
		}
		skills[s.Code] = s
	}

	nodes := make([]tree.Node, 0, len(c.Tree.Nodes))
	for _, doc := range c.Tree.Nodes {
		node, err := doc.toNode()
		if err != nil {
			return Bundle{}, err
		}
		for _, effect := range node.Effects {
			if effect.Kind == tree.EffectUnlockSkill {
				if _, ok := skills[effect.SkillCode]; !ok {
					return Bundle{}, fmt.Errorf("node %s: unlock_skill references unknown skill %q", node.Code, effect.SkillCode)
				}
			}
		}
		nodes = append(nodes, node)
	}
	edges := make([]tree.Edge, 0, len(c.Tree.Edges))
	for _, pair := range c.Tree.Edges {
		edges = append(edges, tree.Edge{A: pair[0], B: pair[1]})
	}
	graph, err := tree.NewGraph(nodes, edges)
	if err != nil {
		return Bundle{}, fmt.Errorf("tree: %w", err)
	}

	grants := make(map[string]activity.Grant, len(c.Activities))
	for activityType, amounts := range c.Activities {
		grant := make(activity.Grant, len(amounts))
		for rawCode, amount := range amounts {
			code, ok := stat.Parse(rawCode)
			if !ok {
				return Bundle{}, fmt.Errorf("activity %s: unknown stat %q", activityType, rawCode)
			}
			grant[code] = amount
		}
		grants[activityType] = grant
	}
	table, err := activity.NewTable(grants)
	if err != nil {
		return Bundle{}, fmt.Errorf("activities: %w", err)
	}

	return Bundle{
		Ledger:     ledger,
		Graph:      graph,
		Skills:     skills,
		Activities: table,
	}, nil
}

func toThresholds(docs []thresholdDoc) []level.Threshold {
	out := make([]level.Threshold, 0, len(docs))
	for _, doc := range docs {
		out = append(out, level.Threshold{Level: doc.Level, XP: doc.XP, Points: doc.Points})
	}
	return out
}

func (d nodeDoc) toNode() (tree.Node, error) {
	effects := make([]tree.Effect, 0, len(d.Effects))
	for _, doc := range d.Effects {
		effect := tree.Effect{
			Kind:       tree.EffectKind(doc.Kind),
			Value:      doc.Value,
			Multiplier: doc.Multiplier,
			SkillCode:  doc.Skill,
			Tag:        doc.Tag,
		}
		if doc.Stat != "" {
			code, ok := stat.Parse(doc.Stat)
			if !ok {
				return tree.Node{}, fmt.Errorf("node %s: unknown stat %q", d.Code, doc.Stat)
			}
			effect.Stat = code
		}
		effects = append(effects, effect)
	}
	return tree.Node{
		Code:           d.Code,
		Name:           d.Name,
		Type:           tree.NodeType(d.Type),
		Branch:         d.Branch,
		RequiredPoints: d.Cost,
		Prerequisites:  d.Prerequisites,
		Effects:        effects,
	}, nil
}

func (d skillDoc) toSkill() (skill.Skill, error) {
	cooldown, err := time.ParseDuration(d.Cooldown)
	if err != nil {
		return skill.Skill{}, fmt.Errorf("skill %s: parse cooldown: %w", d.Code, err)
	}
	s := skill.Skill{
		Code:     d.Code,
		Name:     d.Name,
		Domain:   stat.Code(d.Domain),
		Cooldown: cooldown,
		BonusXP:  d.BonusXP,
	}
	if err := s.Validate(); err != nil {
		return skill.Skill{}, err
	}
	return s, nil
}
