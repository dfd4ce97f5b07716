package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleListPortfolios)
		r.Post("/", h.HandleCreatePortfolio)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPortfolio)
			r.Put("/", h.HandleRenamePortfolio)
			r.Delete("/", h.HandleDeletePortfolio)
			r.Post("/select", h.HandleSelectPortfolio)

			r.Get("/assets", h.HandleListAssets)
			r.Post("/assets", h.HandleAddAsset)
			r.Put("/assets/{assetId}", h.HandleUpdateAsset)
			r.Delete("/assets/{assetId}", h.HandleDeleteAsset)
		})
	})
}
