package history

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/aggregation"
	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxDays bounds a requested window
	MaxDays = 3650
	// leadInDays is fetched before the window so the first day has a close to carry forward
	leadInDays = 7
)

// StatsProvider supplies the current totals and holdings for a scope
type StatsProvider interface {
	Stats(ctx context.Context, scope string) (aggregation.Result, error)
}

// Result is a projected series for a scope
type Result struct {
	Scope   string
	Days    int
	Mode    Mode
	Version uint64
	Points  []Point
	Summary Summary
}

// Service builds value series from current stats and historical closes
type Service struct {
	stats       StatsProvider
	history     domain.HistoryGateway
	defaultDays int
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates a history service. history may be nil, in which case
// every series is interpolated.
func NewService(stats StatsProvider, history domain.HistoryGateway, defaultDays int, log zerolog.Logger) *Service {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &Service{
		stats:       stats,
		history:     history,
		defaultDays: defaultDays,
		now:         time.Now,
		log:         log.With().Str("service", "history").Logger(),
	}
}

// History returns a series of days points for scope. days == 0 uses the default window.
func (s *Service) History(ctx context.Context, scope string, days int) (Result, error) {
	if days == 0 {
		days = s.defaultDays
	}
	if days < 0 || days > MaxDays {
		return Result{}, domain.NewValidationError("days", "must be between 1 and 3650")
	}

	current, err := s.stats.Stats(ctx, scope)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Scope:   current.Scope,
		Days:    days,
		Version: current.Version,
	}

	end := s.now()
	holdings := holdingsOf(current.Stats.Valuations)

	if closes, ok := s.fetchCloses(ctx, holdings, days); ok {
		if points, ok := Observe(holdings, closes, end, days); ok {
			result.Mode = ModeObserved
			result.Points = points
			result.Summary = Summarize(points)
			return result, nil
		}
	}

	result.Mode = ModeInterpolated
	result.Points = Interpolate(current.Stats.TotalInitialInvestment, current.Stats.TotalMarketValue, end, days)
	result.Summary = Summarize(result.Points)

	s.log.Debug().
		Str("scope", result.Scope).
		Int("days", days).
		Msg("Historical closes unavailable, using interpolated series")

	return result, nil
}

func (s *Service) fetchCloses(ctx context.Context, holdings []Holding, days int) (map[string][]domain.PricePoint, bool) {
	if len(holdings) == 0 {
		return map[string][]domain.PricePoint{}, true
	}
	if s.history == nil {
		return nil, false
	}

	var mu sync.Mutex
	closes := make(map[string][]domain.PricePoint, len(holdings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, h := range holdings {
		h := h
		g.Go(func() error {
			points, err := s.history.FetchHistory(gctx, h.Ticker, days+leadInDays)
			if err != nil {
				s.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("Failed to fetch price history")
				return err
			}
			mu.Lock()
			closes[h.Ticker] = points
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, false
	}
	return closes, true
}

// holdingsOf sums quantities per ticker in first-seen order
func holdingsOf(valuations []valuation.Result) []Holding {
	index := make(map[string]int)
	var out []Holding
	for _, v := range valuations {
		if i, ok := index[v.Ticker]; ok {
			out[i].Quantity = out[i].Quantity.Add(v.Quantity)
			continue
		}
		index[v.Ticker] = len(out)
		out = append(out, Holding{Ticker: v.Ticker, Quantity: v.Quantity})
	}
	return out
}
