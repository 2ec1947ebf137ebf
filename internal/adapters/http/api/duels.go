package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/podium/internal/domain/duel"
)

type duelRequest struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`
}

type duelResponse struct {
	Outcome     string     `json:"outcome"`
	ActorID     string     `json:"actor_id"`
	TargetID    string     `json:"target_id"`
	VictimID    string     `json:"victim_id,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	RemainingMS int64      `json:"remaining_ms,omitempty"`
	Odds        *duel.Odds `json:"odds,omitempty"`
	Bypass      *duel.Odds `json:"bypass,omitempty"`
}

func toDuelResponse(out duel.Outcome) duelResponse {
	resp := duelResponse{
		Outcome:     out.Kind.String(),
		ActorID:     out.ActorID,
		TargetID:    out.TargetID,
		VictimID:    out.VictimID,
		DurationMS:  out.Duration.Milliseconds(),
		RemainingMS: out.Remaining.Milliseconds(),
	}
	if out.Kind != duel.CooldownBlocked {
		odds := out.Odds
		resp.Odds = &odds
	}
	resp.Bypass = out.Bypass
	return resp
}

// handlePostDuel handles POST /duels.
func (s *Server) handlePostDuel(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_duel"
	var req duelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, errors.New("missing actor_id")))
		return
	}
	out, err := s.deps.Duel(r.Context(), req.ActorID, req.TargetID)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toDuelResponse(out))
}

// handleGetDuelLeaderboard handles GET /duels/leaderboard?limit=N.
func (s *Server) handleGetDuelLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_duel_leaderboard"
	n, err := s.limit(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := s.deps.DuelLeaderboard(r.Context(), n)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleGetDuelStats handles GET /duels/stats/{id}.
func (s *Server) handleGetDuelStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_duel_stats"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	stats, err := s.deps.DuelStats(r.Context(), id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
