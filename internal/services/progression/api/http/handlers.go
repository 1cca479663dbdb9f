package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerCharacterRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRegisterCharacter(w http.ResponseWriter, r *http.Request) {
	var request registerCharacterRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}

	view, err := s.service.RegisterCharacter(r.Context(), request.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, characterPayload(view))
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))
	view, err := s.service.GetCharacter(r.Context(), characterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, characterPayload(view))
}

type recordActivityRequest struct {
	ActivityType  string             `json:"activity_type"`
	CharacterName string             `json:"character_name,omitempty"`
	Source        string             `json:"source,omitempty"`
	SourceRef     string             `json:"source_ref,omitempty"`
	CustomXP      map[string]float64 `json:"custom_xp,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at,omitempty"`
}

type grantSummaryPayload struct {
	XPGranted        map[string]int `json:"xp_granted"`
	StatLevelUps     []string       `json:"stat_level_ups"`
	CharacterLevelUp bool           `json:"character_level_up"`
	NewLevel         int            `json:"new_level"`
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))

	var request recordActivityRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}

	input := domain.RecordActivityInput{
		CharacterID:   characterID,
		CharacterName: request.CharacterName,
		ActivityType:  request.ActivityType,
		Source:        request.Source,
		SourceRef:     request.SourceRef,
		ActivityTime:  request.OccurredAt,
	}
	if len(request.CustomXP) > 0 {
		input.CustomXP = make(map[stat.Code]float64, len(request.CustomXP))
		for code, amount := range request.CustomXP {
			input.CustomXP[stat.Code(code)] = amount
		}
	}

	summary, err := s.service.RecordActivity(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grantPayload(summary))
}

type activityLogEntryPayload struct {
	ID           string         `json:"id"`
	ActivityType string         `json:"activity_type"`
	Source       string         `json:"source,omitempty"`
	SourceRef    string         `json:"source_ref,omitempty"`
	XPGranted    map[string]int `json:"xp_granted"`
	OccurredAt   time.Time      `json:"occurred_at"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

type activityLogPagePayload struct {
	Entries       []activityLogEntryPayload `json:"entries"`
	NextPageToken string                    `json:"next_page_token,omitempty"`
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))

	pageSize := 0
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.New(apperrors.CodeValidation, "page_size must be an integer"))
			return
		}
		pageSize = parsed
	}
	pageToken := r.URL.Query().Get("page_token")

	page, err := s.service.ListActivityLog(r.Context(), characterID, pageSize, pageToken)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := activityLogPagePayload{
		Entries:       make([]activityLogEntryPayload, 0, len(page.Entries)),
		NextPageToken: page.NextPageToken,
	}
	for _, entry := range page.Entries {
		payload.Entries = append(payload.Entries, activityLogEntryPayload{
			ID:           entry.ID,
			ActivityType: entry.ActivityType,
			Source:       entry.Source,
			SourceRef:    entry.SourceRef,
			XPGranted:    statAmounts(entry.XPGranted),
			OccurredAt:   entry.OccurredAt,
			RecordedAt:   entry.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

type allocateNodeRequest struct {
	NodeCode string `json:"node_code"`
}

type allocateResultPayload struct {
	NodeCode        string   `json:"node_code"`
	PointsRemaining int      `json:"points_remaining"`
	UnlockedSkills  []string `json:"unlocked_skills,omitempty"`
}

func (s *Server) handleAllocateNode(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))

	var request allocateNodeRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.service.AllocateNode(r.Context(), characterID, request.NodeCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allocateResultPayload{
		NodeCode:        result.NodeCode,
		PointsRemaining: result.PointsRemaining,
		UnlockedSkills:  result.UnlockedSkills,
	})
}

type useSkillResultPayload struct {
	SkillCode   string    `json:"skill_code"`
	TimesUsed   int       `json:"times_used"`
	NextReadyAt time.Time `json:"next_ready_at"`
	CreditStat  string    `json:"credit_stat"`
	CreditXP    int       `json:"credit_xp"`
}

func (s *Server) handleUseSkill(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))
	skillCode := strings.TrimSpace(r.PathValue("skillCode"))

	result, err := s.service.UseSkill(r.Context(), characterID, skillCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, useSkillResultPayload{
		SkillCode:   result.SkillCode,
		TimesUsed:   result.TimesUsed,
		NextReadyAt: result.NextReadyAt,
		CreditStat:  string(result.CreditStat),
		CreditXP:    result.CreditXP,
	})
}

type respecResultPayload struct {
	NodesCleared    int `json:"nodes_cleared"`
	PointsRefunded  int `json:"points_refunded"`
	TokensRemaining int `json:"tokens_remaining"`
}

func (s *Server) handleRespec(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))

	result, err := s.service.Respec(r.Context(), characterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, respecResultPayload{
		NodesCleared:    result.NodesCleared,
		PointsRefunded:  result.PointsRefunded,
		TokensRemaining: result.TokensRemaining,
	})
}

type grantTokensRequest struct {
	Tokens int `json:"tokens"`
}

type grantTokensPayload struct {
	RespecTokens int `json:"respec_tokens"`
}

func (s *Server) handleGrantRespecTokens(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.PathValue("characterID"))

	var request grantTokensRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}

	total, err := s.service.GrantRespecTokens(r.Context(), characterID, request.Tokens)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grantTokensPayload{RespecTokens: total})
}

type treeEffectPayload struct {
	Kind       string  `json:"kind"`
	Stat       string  `json:"stat,omitempty"`
	Value      int     `json:"value,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	SkillCode  string  `json:"skill_code,omitempty"`
	Tag        string  `json:"tag,omitempty"`
}

type treeNodePayload struct {
	Code          string              `json:"code"`
	Name          string              `json:"name"`
	Type          string              `json:"type"`
	Branch        string              `json:"branch,omitempty"`
	Cost          int                 `json:"cost"`
	Prerequisites []string            `json:"prerequisites,omitempty"`
	Effects       []treeEffectPayload `json:"effects,omitempty"`
	Allocated     bool                `json:"allocated"`
}

type treeEdgePayload struct {
	A string `json:"a"`
	B string `json:"b"`
}

type treePayload struct {
	Nodes []treeNodePayload `json:"nodes"`
	Edges []treeEdgePayload `json:"edges"`
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	characterID := strings.TrimSpace(r.URL.Query().Get("character_id"))

	view, err := s.service.GetTree(r.Context(), characterID)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := treePayload{
		Nodes: make([]treeNodePayload, 0, len(view.Nodes)),
		Edges: make([]treeEdgePayload, 0, len(view.Edges)),
	}
	for _, node := range view.Nodes {
		nodePayload := treeNodePayload{
			Code:          node.Code,
			Name:          node.Name,
			Type:          string(node.Type),
			Branch:        node.Branch,
			Cost:          node.Cost,
			Prerequisites: node.Prerequisites,
			Allocated:     node.Allocated,
		}
		for _, effect := range node.Effects {
			nodePayload.Effects = append(nodePayload.Effects, treeEffectPayload{
				Kind:       string(effect.Kind),
				Stat:       string(effect.Stat),
				Value:      effect.Value,
				Multiplier: effect.Multiplier,
				SkillCode:  effect.SkillCode,
				Tag:        effect.Tag,
			})
		}
		payload.Nodes = append(payload.Nodes, nodePayload)
	}
	for _, edge := range view.Edges {
		payload.Edges = append(payload.Edges, treeEdgePayload{A: edge.A, B: edge.B})
	}
	writeJSON(w, http.StatusOK, payload)
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid request body", err)
	}
	return nil
}
