package server

import (
	"net/http"

	"github.com/aristath/stockfolio/internal/httputil"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "stockfolio",
	}

	httputil.WriteJSON(w, http.StatusOK, response, s.log)
}
