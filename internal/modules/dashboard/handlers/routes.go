package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the dashboard routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/stats", h.HandleGetStats)     // ?portfolio=<id|all>
		r.Get("/history", h.HandleGetHistory) // ?portfolio=<id|all>&days=N
	})
}
