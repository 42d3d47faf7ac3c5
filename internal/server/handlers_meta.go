package server

import (
	"context"
	"net/http"

	"imgvault/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := api.HealthResponse{Status: "healthy", Timestamp: s.now().Unix(), Version: s.version}
	status := http.StatusOK
	if err := s.backend.TestConnection(ctx); err != nil {
		s.log().Warn("health check failed", "error", err)
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
