package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /api/v1/stats.
type statsResponse struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	Subscribers int            `json:"subscribers"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.logger.Error("get job stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:       stats.Total,
		ByStatus:    stats.CountByStatus,
		Subscribers: s.engine.Broker().Len(),
	})
}
