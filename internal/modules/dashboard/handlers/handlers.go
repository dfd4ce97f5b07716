// Package handlers serves the dashboard stats and history endpoints.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/httputil"
	"github.com/aristath/stockfolio/internal/modules/aggregation"
	"github.com/aristath/stockfolio/internal/modules/history"
	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// totals across portfolios are presented in this currency
const baseCurrency = "USD"

// StatsService computes aggregate stats for a scope
type StatsService interface {
	Stats(ctx context.Context, scope string) (aggregation.Result, error)
}

// HistoryService builds a value series for a scope
type HistoryService interface {
	History(ctx context.Context, scope string, days int) (history.Result, error)
}

// Handler handles dashboard HTTP requests
type Handler struct {
	stats   StatsService
	history HistoryService
	log     zerolog.Logger
}

// NewHandler creates a new dashboard handler
func NewHandler(stats StatsService, history HistoryService, log zerolog.Logger) *Handler {
	return &Handler{
		stats:   stats,
		history: history,
		log:     log.With().Str("handler", "dashboard").Logger(),
	}
}

type allocationResponse struct {
	AssetType  string  `json:"assetType"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

type assetDisplay struct {
	Currency      string  `json:"currency"`
	CurrentPrice  string  `json:"currentPrice,omitempty"`
	MarketValue   string  `json:"marketValue"`
	CostBasis     string  `json:"costBasis"`
	GainLoss      string  `json:"gainLoss"`
	ReturnRatePct float64 `json:"returnRatePct"`
}

type assetValuationResponse struct {
	AssetID       string       `json:"assetId"`
	Ticker        string       `json:"ticker"`
	Name          string       `json:"name"`
	AssetType     string       `json:"assetType"`
	Quantity      float64      `json:"quantity"`
	AvgBuyPrice   float64      `json:"avgBuyPrice"`
	CurrentPrice  *float64     `json:"currentPrice"`
	Currency      string       `json:"currency,omitempty"`
	QuoteAsOf     *time.Time   `json:"quoteAsOf,omitempty"`
	MarketValue   float64      `json:"marketValue"`
	CostBasis     float64      `json:"costBasis"`
	GainLoss      float64      `json:"gainLoss"`
	ReturnRatePct float64      `json:"returnRatePct"`
	Stale         bool         `json:"stale"`
	Source        string       `json:"source"`
	Display       assetDisplay `json:"display"`
}

type allocationDisplay struct {
	AssetType  string  `json:"assetType"`
	Value      string  `json:"value"`
	Percentage float64 `json:"percentage"`
}

type statsDisplay struct {
	Currency               string              `json:"currency"`
	TotalMarketValue       string              `json:"totalMarketValue"`
	TotalInitialInvestment string              `json:"totalInitialInvestment"`
	TotalGainLoss          string              `json:"totalGainLoss"`
	TotalReturnRate        float64             `json:"totalReturnRate"`
	AssetAllocations       []allocationDisplay `json:"assetAllocations"`
}

type statsResponse struct {
	Scope                  string                   `json:"scope"`
	Version                uint64                   `json:"version"`
	ComputedAt             time.Time                `json:"computedAt"`
	Superseded             bool                     `json:"superseded,omitempty"`
	TotalMarketValue       float64                  `json:"totalMarketValue"`
	TotalInitialInvestment float64                  `json:"totalInitialInvestment"`
	TotalGainLoss          float64                  `json:"totalGainLoss"`
	TotalReturnRate        float64                  `json:"totalReturnRate"`
	AssetAllocations       []allocationResponse     `json:"assetAllocations"`
	StaleCount             int                      `json:"staleCount"`
	Assets                 []assetValuationResponse `json:"assets"`
	Display                statsDisplay             `json:"display"`
}

type pointResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Observed  bool      `json:"observed"`
}

type summaryResponse struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Change     float64 `json:"change"`
	ChangePct  float64 `json:"changePct"`
	Volatility float64 `json:"volatility"`
}

type historyResponse struct {
	Scope   string          `json:"scope"`
	Days    int             `json:"days"`
	Mode    string          `json:"mode"`
	Version uint64          `json:"version"`
	Points  []pointResponse `json:"points"`
	Summary summaryResponse `json:"summary"`
}

// HandleGetStats returns aggregate stats for ?portfolio=<id|all>
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.stats.Stats(r.Context(), r.URL.Query().Get("portfolio"))
	if err != nil {
		httputil.WriteDomainError(w, err, h.log)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(result), h.log)
}

// HandleGetHistory returns the value series for ?portfolio=<id|all>&days=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteDomainError(w, domain.NewValidationError("days", "must be a positive integer"), h.log)
			return
		}
		days = n
	}

	result, err := h.history.History(r.Context(), r.URL.Query().Get("portfolio"), days)
	if err != nil {
		httputil.WriteDomainError(w, err, h.log)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(result), h.log)
}

func toStatsResponse(res aggregation.Result) statsResponse {
	st := res.Stats
	out := statsResponse{
		Scope:                  res.Scope,
		Version:                res.Version,
		ComputedAt:             res.ComputedAt,
		Superseded:             res.Superseded,
		TotalMarketValue:       st.TotalMarketValue.InexactFloat64(),
		TotalInitialInvestment: st.TotalInitialInvestment.InexactFloat64(),
		TotalGainLoss:          st.TotalGainLoss.InexactFloat64(),
		TotalReturnRate:        st.TotalReturnRate.InexactFloat64(),
		AssetAllocations:       make([]allocationResponse, 0, len(st.AssetAllocations)),
		StaleCount:             st.StaleCount,
		Assets:                 make([]assetValuationResponse, 0, len(st.Valuations)),
		Display: statsDisplay{
			Currency:               baseCurrency,
			TotalMarketValue:       valuation.FormatAmount(st.TotalMarketValue, baseCurrency),
			TotalInitialInvestment: valuation.FormatAmount(st.TotalInitialInvestment, baseCurrency),
			TotalGainLoss:          valuation.FormatAmount(st.TotalGainLoss, baseCurrency),
			TotalReturnRate:        valuation.RoundPercent(st.TotalReturnRate).InexactFloat64(),
			AssetAllocations:       make([]allocationDisplay, 0, len(st.AssetAllocations)),
		},
	}

	for _, a := range st.AssetAllocations {
		out.AssetAllocations = append(out.AssetAllocations, allocationResponse{
			AssetType:  a.AssetType.String(),
			Value:      a.Value.InexactFloat64(),
			Percentage: a.Percentage.InexactFloat64(),
		})
		out.Display.AssetAllocations = append(out.Display.AssetAllocations, allocationDisplay{
			AssetType:  a.AssetType.String(),
			Value:      valuation.FormatAmount(a.Value, baseCurrency),
			Percentage: valuation.RoundPercent(a.Percentage).InexactFloat64(),
		})
	}

	for _, v := range st.Valuations {
		out.Assets = append(out.Assets, toAssetValuation(v))
	}

	return out
}

func toAssetValuation(v valuation.Result) assetValuationResponse {
	cur := valuation.DisplayCurrency(v.Ticker, v.Currency)
	out := assetValuationResponse{
		AssetID:       v.AssetID,
		Ticker:        v.Ticker,
		Name:          v.Name,
		AssetType:     v.AssetType.String(),
		Quantity:      v.Quantity.InexactFloat64(),
		AvgBuyPrice:   v.AvgBuyPrice.InexactFloat64(),
		Currency:      v.Currency,
		QuoteAsOf:     v.QuoteAsOf,
		MarketValue:   v.MarketValue.InexactFloat64(),
		CostBasis:     v.CostBasis.InexactFloat64(),
		GainLoss:      v.GainLoss.InexactFloat64(),
		ReturnRatePct: v.ReturnRatePct.InexactFloat64(),
		Stale:         v.Stale,
		Source:        string(v.Source),
		Display: assetDisplay{
			Currency:      cur,
			MarketValue:   valuation.FormatAmount(v.MarketValue, cur),
			CostBasis:     valuation.FormatAmount(v.CostBasis, cur),
			GainLoss:      valuation.FormatAmount(v.GainLoss, cur),
			ReturnRatePct: valuation.RoundPercent(v.ReturnRatePct).InexactFloat64(),
		},
	}
	if v.CurrentPrice != nil {
		price := v.CurrentPrice.InexactFloat64()
		out.CurrentPrice = &price
		out.Display.CurrentPrice = valuation.FormatAmount(*v.CurrentPrice, cur)
	}
	return out
}

func toHistoryResponse(res history.Result) historyResponse {
	out := historyResponse{
		Scope:   res.Scope,
		Days:    res.Days,
		Mode:    string(res.Mode),
		Version: res.Version,
		Points:  make([]pointResponse, 0, len(res.Points)),
		Summary: summaryResponse{
			Start:      res.Summary.Start.InexactFloat64(),
			End:        res.Summary.End.InexactFloat64(),
			Change:     res.Summary.Change.InexactFloat64(),
			ChangePct:  roundFloat(res.Summary.ChangePct),
			Volatility: res.Summary.Volatility,
		},
	}
	for _, p := range res.Points {
		out.Points = append(out.Points, pointResponse{
			Timestamp: p.Timestamp,
			Value:     p.Value.InexactFloat64(),
			Observed:  p.Observed,
		})
	}
	return out
}

func roundFloat(d decimal.Decimal) float64 {
	return valuation.RoundPercent(d).InexactFloat64()
}
