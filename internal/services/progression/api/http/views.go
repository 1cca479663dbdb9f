package http

import (
	"time"

	"github.com/evergrind/evergrind/internal/services/progression/domain"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

type statPayload struct {
	Code           string `json:"code"`
	Level          int    `json:"level"`
	XP             int64  `json:"xp"`
	BaseValue      int    `json:"base_value"`
	AllocatedBonus int    `json:"allocated_bonus"`
	Total          int    `json:"total"`
}

type skillPayload struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Domain     string     `json:"domain"`
	TimesUsed  int        `json:"times_used"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ReadyAt    time.Time  `json:"ready_at"`
}

type modifierPayload struct {
	NodeCode   string  `json:"node_code"`
	Kind       string  `json:"kind"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Tag        string  `json:"tag,omitempty"`
}

type characterResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Level          int                `json:"level"`
	TotalXP        int64              `json:"total_xp"`
	NextLevelXP    int64              `json:"next_level_xp"`
	StatPoints     int                `json:"stat_points"`
	PointsGranted  int                `json:"points_granted"`
	RespecTokens   int                `json:"respec_tokens"`
	Stats          []statPayload      `json:"stats"`
	Derived        map[string]float64 `json:"derived"`
	Modifiers      []modifierPayload  `json:"modifiers,omitempty"`
	Skills         []skillPayload     `json:"skills,omitempty"`
	AllocatedNodes []string           `json:"allocated_nodes"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func characterPayload(view domain.CharacterView) characterResponse {
	response := characterResponse{
		ID:             view.ID,
		Name:           view.Name,
		Level:          view.Level,
		TotalXP:        view.TotalXP,
		NextLevelXP:    view.NextLevelXP,
		StatPoints:     view.StatPoints,
		PointsGranted:  view.PointsGranted,
		RespecTokens:   view.RespecTokens,
		Derived:        make(map[string]float64, len(view.Derived)),
		AllocatedNodes: view.AllocatedNodes,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      view.UpdatedAt,
	}
	for _, statView := range view.Stats {
		response.Stats = append(response.Stats, statPayload{
			Code:           string(statView.Code),
			Level:          statView.Level,
			XP:             statView.XP,
			BaseValue:      statView.BaseValue,
			AllocatedBonus: statView.AllocatedBonus,
			Total:          statView.Total,
		})
	}
	for code, value := range view.Derived {
		response.Derived[string(code)] = value
	}
	for _, modifier := range view.Modifiers {
		response.Modifiers = append(response.Modifiers, modifierPayload{
			NodeCode:   modifier.NodeCode,
			Kind:       string(modifier.Kind),
			Multiplier: modifier.Multiplier,
			Tag:        modifier.Tag,
		})
	}
	for _, skillView := range view.Skills {
		response.Skills = append(response.Skills, skillPayload{
			Code:       skillView.Code,
			Name:       skillView.Name,
			Domain:     string(skillView.Domain),
			TimesUsed:  skillView.TimesUsed,
			LastUsedAt: skillView.LastUsedAt,
			ReadyAt:    skillView.ReadyAt,
		})
	}
	return response
}

func grantPayload(summary domain.GrantSummary) grantSummaryPayload {
	payload := grantSummaryPayload{
		XPGranted:        statAmounts(summary.XPGranted),
		StatLevelUps:     make([]string, 0, len(summary.StatLevelUps)),
		CharacterLevelUp: summary.CharacterLevelUp,
		NewLevel:         summary.NewLevel,
	}
	for _, code := range summary.StatLevelUps {
		payload.StatLevelUps = append(payload.StatLevelUps, string(code))
	}
	return payload
}

func statAmounts(amounts map[stat.Code]int) map[string]int {
	result := make(map[string]int, len(amounts))
	for code, amount := range amounts {
		result[string(code)] = amount
	}
	return result
}
