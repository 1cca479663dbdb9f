// Package http exposes the progression engine as a JSON HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/evergrind/evergrind/internal/services/progression/domain"
)

const tracerName = "github.com/evergrind/evergrind/internal/services/progression/api/http"

// Service defines the progression operations the HTTP layer depends on.
type Service interface {
	RegisterCharacter(ctx context.Context, name string) (domain.CharacterView, error)
	GetCharacter(ctx context.Context, characterID string) (domain.CharacterView, error)
	RecordActivity(ctx context.Context, input domain.RecordActivityInput) (domain.GrantSummary, error)
	ListActivityLog(ctx context.Context, characterID string, pageSize int, pageToken string) (domain.ActivityLogPage, error)
	AllocateNode(ctx context.Context, characterID string, nodeCode string) (domain.AllocateResult, error)
	UseSkill(ctx context.Context, characterID string, skillCode string) (domain.UseSkillResult, error)
	Respec(ctx context.Context, characterID string) (domain.RespecResult, error)
	GrantRespecTokens(ctx context.Context, characterID string, tokens int) (int, error)
	GetTree(ctx context.Context, characterID string) (domain.TreeView, error)
}

// Server routes progression API requests to the domain service.
type Server struct {
	service Service
	tracer  oteltrace.Tracer
}

// NewServer builds a Server over the given service.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
		tracer:  otel.Tracer(tracerName),
	}
}

// Handler returns the routed HTTP handler for the progression API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, s)
	return s.withTracing(mux)
}

// withTracing starts one server span per request and records the route
// pattern and response status on it.
func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			oteltrace.WithSpanKind(oteltrace.SpanKindServer),
			oteltrace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", recorder.status))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func registerRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc(http.MethodGet+" /healthz", s.handleHealth)
	mux.HandleFunc(http.MethodPost+" /v1/characters", s.handleRegisterCharacter)
	mux.HandleFunc(http.MethodGet+" /v1/characters/{characterID}", s.handleGetCharacter)
	mux.HandleFunc(http.MethodPost+" /v1/characters/{characterID}/activities", s.handleRecordActivity)
	mux.HandleFunc(http.MethodGet+" /v1/characters/{characterID}/activities", s.handleListActivities)
	mux.HandleFunc(http.MethodPost+" /v1/characters/{characterID}/allocations", s.handleAllocateNode)
	mux.HandleFunc(http.MethodPost+" /v1/characters/{characterID}/skills/{skillCode}/use", s.handleUseSkill)
	mux.HandleFunc(http.MethodPost+" /v1/characters/{characterID}/respec", s.handleRespec)
	mux.HandleFunc(http.MethodPost+" /v1/characters/{characterID}/respec-tokens", s.handleGrantRespecTokens)
	mux.HandleFunc(http.MethodGet+" /v1/tree", s.handleGetTree)
}
