package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/podium/internal/adapters/repository"
	service "github.com/okian/podium/internal/app"
)

type contributionRequest struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subject_id"`
	Amount    float64 `json:"amount"`
	ProofURL  string  `json:"proof_url"`
	CreatedAt string  `json:"created_at"`
}

func (c contributionRequest) input() (service.ContributionInput, error) {
	in := service.ContributionInput{
		ID:        c.ID,
		SubjectID: c.SubjectID,
		Amount:    c.Amount,
		ProofURL:  c.ProofURL,
	}
	if strings.TrimSpace(c.SubjectID) == "" {
		return in, errors.New("missing subject_id")
	}
	if c.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, c.CreatedAt)
		if err != nil {
			return in, errors.New("invalid created_at; must be RFC3339")
		}
		in.CreatedAt = ts
	}
	return in, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// handlePostContribution handles POST /contributions.
func (s *Server) handlePostContribution(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_contribution"
	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	id, err := s.deps.SubmitContribution(r.Context(), in)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: id, Duplicate: true})
	case err != nil:
		s.writeError(w, r, Wrap(op, err))
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: id})
	}
}

// handleDeleteContribution handles DELETE /contributions/{id}?owner=subject.
func (s *Server) handleDeleteContribution(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_contribution"
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		s.writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	c, err := s.deps.RemoveContribution(r.Context(), id, r.URL.Query().Get("owner"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
