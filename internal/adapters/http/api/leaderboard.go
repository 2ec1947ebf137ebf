package api

import (
	"net/http"
	"strings"
)

// handleGetLeaderboard handles GET /leaderboard?limit=N.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n, err := s.limit(r)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := s.deps.Leaderboard(r.Context(), n)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetRank handles GET /rank/{id}.
func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := s.deps.Rank(r.Context(), id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleGetSubject handles GET /subjects/{id}.
func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_subject"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	summary, err := s.deps.Subject(r.Context(), id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
