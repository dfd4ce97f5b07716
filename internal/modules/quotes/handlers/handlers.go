// Package handlers exposes quote lookups over HTTP.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/httputil"
	"github.com/aristath/stockfolio/internal/modules/history"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultChartDays = 30

// QuoteService resolves a single ticker
type QuoteService interface {
	Quote(ctx context.Context, ticker string) domain.QuoteResult
}

// Handler handles market data requests
type Handler struct {
	quotes  QuoteService
	history domain.HistoryGateway
	log     zerolog.Logger
}

// NewHandler creates a market handler. history may be nil.
func NewHandler(quotes QuoteService, history domain.HistoryGateway, log zerolog.Logger) *Handler {
	return &Handler{
		quotes:  quotes,
		history: history,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

type priceResponse struct {
	Ticker   string    `json:"ticker"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	AsOf     time.Time `json:"asOf"`
	Stale    bool      `json:"stale"`
}

type chartPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type chartResponse struct {
	Ticker  string       `json:"ticker"`
	Days    int          `json:"days"`
	History []chartPoint `json:"history"`
}

// RegisterRoutes registers the market routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/price", h.HandleGetPrice) // ?ticker=
		r.Get("/chart", h.HandleGetChart) // ?ticker=&days=
	})
}

// HandleGetPrice returns the current quote for a ticker, falling back to the
// last known price when the live fetch fails
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	ticker, err := portfolio.NormalizeTicker(r.URL.Query().Get("ticker"))
	if err != nil {
		httputil.WriteDomainError(w, err, h.log)
		return
	}

	res := h.quotes.Quote(r.Context(), ticker)
	if res.Quote == nil {
		err := res.Err
		if err == nil {
			err = domain.NewQuoteUnavailableError(ticker, nil)
		}
		httputil.WriteDomainError(w, err, h.log)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, priceResponse{
		Ticker:   ticker,
		Price:    res.Quote.CurrentPrice.InexactFloat64(),
		Currency: res.Quote.Currency,
		AsOf:     res.Quote.AsOf,
		Stale:    res.Stale,
	}, h.log)
}

// HandleGetChart returns daily closes for a ticker
func (h *Handler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	ticker, err := portfolio.NormalizeTicker(r.URL.Query().Get("ticker"))
	if err != nil {
		httputil.WriteDomainError(w, err, h.log)
		return
	}

	days := defaultChartDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > history.MaxDays {
			httputil.WriteDomainError(w, domain.NewValidationError("days", "must be between 1 and 3650"), h.log)
			return
		}
		days = n
	}

	if h.history == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "price history is not available", h.log)
		return
	}

	points, err := h.history.FetchHistory(r.Context(), ticker, days)
	if err != nil {
		httputil.WriteDomainError(w, err, h.log)
		return
	}

	out := chartResponse{Ticker: ticker, Days: days, History: make([]chartPoint, 0, len(points))}
	for _, p := range points {
		out.History = append(out.History, chartPoint{
			Date:  p.Date.Format("2006-01-02"),
			Price: p.Price.InexactFloat64(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out, h.log)
}
