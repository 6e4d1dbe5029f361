package api

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth handles GET /healthz requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.deps.GetStats(r.Context())
	if !st.Started {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
