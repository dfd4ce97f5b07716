// Package handlers provides HTTP handlers for portfolio and asset management.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/httputil"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	registry *portfolio.Registry
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(registry *portfolio.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

type portfolioRequest struct {
	Name string `json:"name"`
}

type addAssetRequest struct {
	Ticker      string          `json:"ticker"`
	AssetType   string          `json:"assetType"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgBuyPrice decimal.Decimal `json:"avgBuyPrice"`
	Name        string          `json:"name,omitempty"`
}

type updateAssetRequest struct {
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	AvgBuyPrice *decimal.Decimal `json:"avgBuyPrice,omitempty"`
	AssetType   *string          `json:"assetType,omitempty"`
	Name        *string          `json:"name,omitempty"`
}

type assetResponse struct {
	ID          string      `json:"id"`
	Ticker      string      `json:"ticker"`
	Name        string      `json:"name"`
	AssetType   string      `json:"assetType"`
	Quantity    json.Number `json:"quantity"`
	AvgBuyPrice json.Number `json:"avgBuyPrice"`
	CostBasis   json.Number `json:"costBasis"`
}

type portfolioResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	Revision  uint64          `json:"revision"`
	Selected  bool            `json:"selected"`
	Assets    []assetResponse `json:"assets"`
}

type portfolioListResponse struct {
	Portfolios          []portfolioResponse `json:"portfolios"`
	SelectedPortfolioID string              `json:"selectedPortfolioId,omitempty"`
	Version             uint64              `json:"version"`
}

// HandleListPortfolios returns every portfolio and the selection
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	state := h.registry.Store().GetState()

	out := portfolioListResponse{
		Portfolios:          make([]portfolioResponse, 0, len(state.Portfolios)),
		SelectedPortfolioID: state.SelectedPortfolioID,
		Version:             state.Version,
	}
	for _, p := range state.Portfolios {
		out.Portfolios = append(out.Portfolios, toPortfolioResponse(p, state.SelectedPortfolioID))
	}

	h.writeJSON(w, http.StatusOK, out)
}

// HandleCreatePortfolio creates a portfolio
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.registry.CreatePortfolio(req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPortfolioResponse(p, h.selected()))
}

// HandleGetPortfolio returns one portfolio with its assets
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.registry.GetPortfolio(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPortfolioResponse(p, h.selected()))
}

// HandleRenamePortfolio replaces the portfolio name
func (h *Handler) HandleRenamePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.registry.RenamePortfolio(chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPortfolioResponse(p, h.selected()))
}

// HandleDeletePortfolio removes a portfolio and its assets
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeletePortfolio(chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSelectPortfolio marks a portfolio as selected
func (h *Handler) HandleSelectPortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.SelectPortfolio(id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"selectedPortfolioId": id})
}

// HandleListAssets returns a portfolio's assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.registry.ListAssets(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAssetResponses(assets))
}

// HandleAddAsset adds an asset to a portfolio
func (h *Handler) HandleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req addAssetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	asset, err := h.registry.AddAsset(chi.URLParam(r, "id"), portfolio.AssetDraft{
		Ticker:      req.Ticker,
		AssetType:   req.AssetType,
		Quantity:    req.Quantity,
		AvgBuyPrice: req.AvgBuyPrice,
		Name:        req.Name,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toAssetResponse(asset))
}

// HandleUpdateAsset patches an asset
func (h *Handler) HandleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req updateAssetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	asset, err := h.registry.UpdateAsset(chi.URLParam(r, "id"), chi.URLParam(r, "assetId"), portfolio.AssetPatch{
		Quantity:    req.Quantity,
		AvgBuyPrice: req.AvgBuyPrice,
		AssetType:   req.AssetType,
		Name:        req.Name,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

// HandleDeleteAsset removes an asset
func (h *Handler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteAsset(chi.URLParam(r, "id"), chi.URLParam(r, "assetId")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selected() string {
	return h.registry.Store().GetState().SelectedPortfolioID
}

func toPortfolioResponse(p domain.Portfolio, selectedID string) portfolioResponse {
	return portfolioResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		Revision:  p.Revision,
		Selected:  p.ID == selectedID,
		Assets:    toAssetResponses(p.Assets),
	}
}

func toAssetResponses(assets []domain.Asset) []assetResponse {
	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	return out
}

func toAssetResponse(a domain.Asset) assetResponse {
	return assetResponse{
		ID:          a.ID,
		Ticker:      a.Ticker,
		Name:        a.Name,
		AssetType:   a.AssetType.String(),
		Quantity:    json.Number(a.Quantity.String()),
		AvgBuyPrice: json.Number(a.AvgBuyPrice.String()),
		CostBasis:   json.Number(a.CostBasis().String()),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.WriteJSON(w, status, data, h.log)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	httputil.WriteDomainError(w, err, h.log)
}
