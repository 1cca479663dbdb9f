package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
	"github.com/evergrind/evergrind/internal/services/progression/domain"
	"github.com/evergrind/evergrind/internal/services/progression/domain/stat"
	"github.com/evergrind/evergrind/internal/services/progression/domain/tree"
)

// stubService records calls and returns canned responses.
type stubService struct {
	character domain.CharacterView
	summary   domain.GrantSummary
	page      domain.ActivityLogPage
	allocate  domain.AllocateResult
	skillUse  domain.UseSkillResult
	respec    domain.RespecResult
	tokens    int
	tree      domain.TreeView
	err       error

	lastRegisterName string
	lastCharacterID  string
	lastInput        domain.RecordActivityInput
	lastNodeCode     string
	lastSkillCode    string
	lastPageSize     int
	lastPageToken    string
	lastTokens       int
}

func (s *stubService) RegisterCharacter(_ context.Context, name string) (domain.CharacterView, error) {
	s.lastRegisterName = name
	return s.character, s.err
}

func (s *stubService) GetCharacter(_ context.Context, characterID string) (domain.CharacterView, error) {
	s.lastCharacterID = characterID
	return s.character, s.err
}

func (s *stubService) RecordActivity(_ context.Context, input domain.RecordActivityInput) (domain.GrantSummary, error) {
	s.lastInput = input
	return s.summary, s.err
}

func (s *stubService) ListActivityLog(_ context.Context, characterID string, pageSize int, pageToken string) (domain.ActivityLogPage, error) {
	s.lastCharacterID = characterID
	s.lastPageSize = pageSize
	s.lastPageToken = pageToken
	return s.page, s.err
}

func (s *stubService) AllocateNode(_ context.Context, characterID string, nodeCode string) (domain.AllocateResult, error) {
	s.lastCharacterID = characterID
	s.lastNodeCode = nodeCode
	return s.allocate, s.err
}

func (s *stubService) UseSkill(_ context.Context, characterID string, skillCode string) (domain.UseSkillResult, error) {
	s.lastCharacterID = characterID
	s.lastSkillCode = skillCode
	return s.skillUse, s.err
}

func (s *stubService) Respec(_ context.Context, characterID string) (domain.RespecResult, error) {
	s.lastCharacterID = characterID
	return s.respec, s.err
}

func (s *stubService) GrantRespecTokens(_ context.Context, characterID string, tokens int) (int, error) {
	s.lastCharacterID = characterID
	s.lastTokens = tokens
	return s.tokens, s.err
}

func (s *stubService) GetTree(_ context.Context, characterID string) (domain.TreeView, error) {
	s.lastCharacterID = characterID
	return s.tree, s.err
}

func serve(s *stubService, method string, target string, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	NewServer(s).Handler().ServeHTTP(recorder, request)
	return recorder
}

func TestRegisterCharacter(t *testing.T) {
	t.Parallel()

	stub := &stubService{character: domain.CharacterView{ID: "char-1", Name: "Rowan", Level: 1, RespecTokens: 1}}
	recorder := serve(stub, http.MethodPost, "/v1/characters", `{"name":"Rowan"}`)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body)
	}
	if stub.lastRegisterName != "Rowan" {
		t.Fatalf("registered name = %q", stub.lastRegisterName)
	}
	var payload characterResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "char-1" || payload.RespecTokens != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRegisterCharacterRejectsBadBody(t *testing.T) {
	t.Parallel()

	stub := &stubService{}
	recorder := serve(stub, http.MethodPost, "/v1/characters", `{"name":`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	var payload errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.Error != string(apperrors.CodeValidation) {
		t.Fatalf("error code = %q", payload.Error)
	}
}

func TestGetCharacterNotFound(t *testing.T) {
	t.Parallel()

	stub := &stubService{err: apperrors.WithMetadata(apperrors.CodeNotFound, "character missing", map[string]string{"character_id": "ghost"})}
	recorder := serve(stub, http.MethodGet, "/v1/characters/ghost", "")

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	var payload errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.Error != string(apperrors.CodeNotFound) || payload.Metadata["character_id"] != "ghost" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestRecordActivityPassesInput(t *testing.T) {
	t.Parallel()

	stub := &stubService{summary: domain.GrantSummary{
		XPGranted: map[stat.Code]int{stat.Strength: 150},
		NewLevel:  2,
	}}
	body := `{"activity_type":"workout","source":"scheduler","source_ref":"task-9","custom_xp":{"STR":150}}`
	recorder := serve(stub, http.MethodPost, "/v1/characters/char-1/activities", body)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body)
	}
	if stub.lastInput.CharacterID != "char-1" || stub.lastInput.SourceRef != "task-9" {
		t.Fatalf("unexpected input: %+v", stub.lastInput)
	}
	if stub.lastInput.CustomXP[stat.Strength] != 150 {
		t.Fatalf("custom xp not forwarded: %+v", stub.lastInput.CustomXP)
	}
	var payload grantSummaryPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.XPGranted["STR"] != 150 || payload.NewLevel != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestListActivitiesValidatesPageSize(t *testing.T) {
	t.Parallel()

	stub := &stubService{}
	recorder := serve(stub, http.MethodGet, "/v1/characters/char-1/activities?page_size=nope", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}

	stub.page = domain.ActivityLogPage{NextPageToken: "tok"}
	recorder = serve(stub, http.MethodGet, "/v1/characters/char-1/activities?page_size=5&page_token=prev", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body)
	}
	if stub.lastPageSize != 5 || stub.lastPageToken != "prev" {
		t.Fatalf("paging not forwarded: size=%d token=%q", stub.lastPageSize, stub.lastPageToken)
	}
}

func TestAllocateNodeErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "insufficient points", err: apperrors.New(apperrors.CodeInsufficientPoints, "not enough points"), want: http.StatusConflict},
		{name: "unreachable", err: apperrors.New(apperrors.CodeNodeUnreachable, "no allocated neighbor"), want: http.StatusConflict},
		{name: "prerequisite", err: apperrors.New(apperrors.CodePrerequisiteNotMet, "missing prerequisite"), want: http.StatusConflict},
		{name: "already allocated", err: apperrors.New(apperrors.CodeAlreadyAllocated, "node held"), want: http.StatusConflict},
		{name: "unknown node", err: apperrors.New(apperrors.CodeNotFound, "node missing"), want: http.StatusNotFound},
		{name: "internal", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stub := &stubService{err: tc.err}
			recorder := serve(stub, http.MethodPost, "/v1/characters/char-1/allocations", `{"node_code":"node_x"}`)
			if recorder.Code != tc.want {
				t.Fatalf("status = %d, want %d", recorder.Code, tc.want)
			}
		})
	}
}

func TestAllocateNodeSuccess(t *testing.T) {
	t.Parallel()

	stub := &stubService{allocate: domain.AllocateResult{NodeCode: "node_x", PointsRemaining: 3, UnlockedSkills: []string{"surge"}}}
	recorder := serve(stub, http.MethodPost, "/v1/characters/char-1/allocations", `{"node_code":"node_x"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body)
	}
	if stub.lastNodeCode != "node_x" {
		t.Fatalf("node code = %q", stub.lastNodeCode)
	}
	var payload allocateResultPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.PointsRemaining != 3 || len(payload.UnlockedSkills) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUseSkill(t *testing.T) {
	t.Parallel()

	ready := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	stub := &stubService{skillUse: domain.UseSkillResult{SkillCode: "surge", TimesUsed: 2, NextReadyAt: ready, CreditStat: stat.Strength, CreditXP: 50}}
	recorder := serve(stub, http.MethodPost, "/v1/characters/char-1/skills/surge/use", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body)
	}
	if stub.lastSkillCode != "surge" {
		t.Fatalf("skill code = %q", stub.lastSkillCode)
	}
	var payload useSkillResultPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.CreditStat != "STR" || payload.CreditXP != 50 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestUseSkillOnCooldown(t *testing.T) {
	t.Parallel()

	stub := &stubService{err: apperrors.WithMetadata(apperrors.CodeOnCooldown, "skill cooling down", map[string]string{"remaining_seconds": "3600"})}
	recorder := serve(stub, http.MethodPost, "/v1/characters/char-1/skills/surge/use", "")

	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", recorder.Code)
	}
	var payload errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload.Metadata["remaining_seconds"] != "3600" {
		t.Fatalf("metadata missing: %+v", payload)
	}
}

func TestRespecAndTokens(t *testing.T) {
	t.Parallel()

	stub := &stubService{respec: domain.RespecResult{NodesCleared: 3, PointsRefunded: 5, TokensRemaining: 0}, tokens: 2}

	recorder := serve(stub, http.MethodPost, "/v1/characters/char-1/respec", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("respec status = %d: %s", recorder.Code, recorder.Body)
	}
	var respecBody respecResultPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &respecBody); err != nil {
		t.Fatalf("decode respec: %v", err)
	}
	if respecBody.PointsRefunded != 5 {
		t.Fatalf("unexpected respec payload: %+v", respecBody)
	}

	recorder = serve(stub, http.MethodPost, "/v1/characters/char-1/respec-tokens", `{"tokens":1}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("grant tokens status = %d: %s", recorder.Code, recorder.Body)
	}
	if stub.lastTokens != 1 {
		t.Fatalf("tokens = %d", stub.lastTokens)
	}
}

func TestGetTree(t *testing.T) {
	t.Parallel()

	stub := &stubService{tree: domain.TreeView{
		Nodes: []domain.TreeNodeView{{
			Code: "origin", Name: "Origin", Type: tree.NodeOrigin, Allocated: true,
		}, {
			Code: "node_x", Name: "Iron Grip", Type: tree.NodeMinor, Cost: 2,
			Effects: []tree.Effect{{Kind: tree.EffectStatBonus, Stat: stat.Strength, Value: 5}},
		}},
		Edges: []tree.Edge{{A: "origin", B: "node_x"}},
	}}
	recorder := serve(stub, http.MethodGet, "/v1/tree?character_id=char-1", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body)
	}
	if stub.lastCharacterID != "char-1" {
		t.Fatalf("character id = %q", stub.lastCharacterID)
	}
	var payload treePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Nodes) != 2 || len(payload.Edges) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Nodes[1].Effects[0].Kind != "stat_bonus" || payload.Nodes[1].Effects[0].Value != 5 {
		t.Fatalf("unexpected effects: %+v", payload.Nodes[1].Effects)
	}
}

func TestMethodRouting(t *testing.T) {
	t.Parallel()

	stub := &stubService{}
	recorder := serve(stub, http.MethodDelete, "/v1/characters/char-1", "")
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}

	recorder = serve(stub, http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("health status = %d", recorder.Code)
	}
}
