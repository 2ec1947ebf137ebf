// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/app/rolesync"
	"github.com/okian/podium/internal/domain/duel"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

const (
	defaultLimit    = 10
	defaultMaxLimit = 100
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SubmitContribution(ctx context.Context, in service.ContributionInput) (string, error)
	RemoveContribution(ctx context.Context, id, ownerID string) (types.Contribution, error)

	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
	Rank(ctx context.Context, subjectID string) (types.Entry, error)
	Subject(ctx context.Context, subjectID string) (types.SubjectSummary, error)

	Duel(ctx context.Context, actorID, targetID string) (duel.Outcome, error)
	DuelLeaderboard(ctx context.Context, limit int) ([]types.RestrictionEntry, error)
	DuelStats(ctx context.Context, subjectID string) (types.RestrictionEntry, error)

	TriggerSync(ctx context.Context) (rolesync.TriggerResult, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	maxLimit int
	logger   logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by list endpoints.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /healthz", MetricsMiddleware(HandleHealth, "healthz"))
	mux.Handle("GET /stats", MetricsMiddleware(s.handleStats, "stats"))

	mux.Handle("POST /contributions", MetricsMiddleware(s.handlePostContribution, "contributions"))
	mux.Handle("DELETE /contributions/{id}", MetricsMiddleware(s.handleDeleteContribution, "contributions"))

	mux.Handle("GET /leaderboard", MetricsMiddleware(s.handleGetLeaderboard, "leaderboard"))
	mux.Handle("GET /rank/{id}", MetricsMiddleware(s.handleGetRank, "rank"))
	mux.Handle("GET /subjects/{id}", MetricsMiddleware(s.handleGetSubject, "subjects"))

	mux.Handle("POST /duels", MetricsMiddleware(s.handlePostDuel, "duels"))
	mux.Handle("GET /duels/leaderboard", MetricsMiddleware(s.handleGetDuelLeaderboard, "duels"))
	mux.Handle("GET /duels/stats/{id}", MetricsMiddleware(s.handleGetDuelStats, "duels"))

	mux.Handle("POST /sync", MetricsMiddleware(s.handlePostSync, "sync"))
}

// limit reads ?limit=, defaulting when absent.
func (s *Server) limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultLimit, s.maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > s.maxLimit {
		return 0, ErrBadRequest
	}
	return n, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
