package api

import (
	"net/http"
)

type syncResponse struct {
	Result string `json:"result"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, Wrap("api.get_stats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handlePostSync handles POST /sync. The run happens in the background.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.TriggerSync(r.Context())
	if err != nil {
		s.writeError(w, r, Wrap("api.post_sync", err))
		return
	}
	writeJSON(w, http.StatusAccepted, syncResponse{Result: res.String()})
}
