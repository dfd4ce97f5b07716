package aggregation

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// ScopeAll aggregates every portfolio in the store
const ScopeAll = "all"

// QuoteResolver resolves a batch of tickers, capturing failures per ticker
type QuoteResolver interface {
	Resolve(ctx context.Context, tickers []string) domain.QuoteSet
}

// StateReader exposes consistent snapshots of the portfolio store
type StateReader interface {
	GetState() portfolio.State
}

// ServiceConfig tunes the stats service
type ServiceConfig struct {
	Policy   valuation.FallbackPolicy
	CacheTTL time.Duration // how long a result may be served for an unchanged version
}

// Result is a computed set of stats and the state version it was computed from
type Result struct {
	Scope      string
	Version    uint64
	ComputedAt time.Time
	Stats      Stats
	// Superseded is set when the store moved on while quotes were being resolved.
	// Such results are returned once but never cached.
	Superseded bool
}

type cacheEntry struct {
	version uint64
	result  Result
}

// Service computes dashboard stats on top of the store and a quote resolver
type Service struct {
	state    StateReader
	resolver QuoteResolver
	cfg      ServiceConfig
	now      func() time.Time
	mu       sync.Mutex
	cache    map[string]cacheEntry
	log      zerolog.Logger
}

// NewService creates a stats service
func NewService(state StateReader, resolver QuoteResolver, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.Policy == "" {
		cfg.Policy = valuation.FallbackCostBasis
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Service{
		state:    state,
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
		log:      log.With().Str("service", "stats").Logger(),
	}
}

// Stats returns aggregate stats for a portfolio id or ScopeAll.
// An empty scope means the selected portfolio, or every portfolio when none is selected.
func (s *Service) Stats(ctx context.Context, scope string) (Result, error) {
	snapshot := s.state.GetState()

	scope = resolveScope(snapshot, scope)
	assets, version, err := scopeAssets(snapshot, scope)
	if err != nil {
		return Result{}, err
	}

	if cached, ok := s.cached(scope, version); ok {
		return cached, nil
	}

	quotes := s.resolver.Resolve(ctx, tickers(assets))
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{
		Scope:      scope,
		Version:    version,
		ComputedAt: s.now(),
		Stats:      ComputeStats(assets, quotes, s.cfg.Policy),
	}

	if s.superseded(scope, version) {
		result.Superseded = true
		s.log.Debug().
			Str("scope", scope).
			Uint64("version", version).
			Msg("Stats superseded by newer mutation, not caching")
		return result, nil
	}

	s.mu.Lock()
	s.cache[scope] = cacheEntry{version: version, result: result}
	s.mu.Unlock()

	return result, nil
}

// Invalidate drops cached stats affected by a store change
func (s *Service) Invalidate(change portfolio.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, ScopeAll)
	for _, id := range change.PortfolioIDs {
		delete(s.cache, id)
	}
}

// Flush drops every cached result, used after quotes were refreshed
func (s *Service) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cacheEntry)
}

func (s *Service) cached(scope string, version uint64) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[scope]
	if !ok || entry.version != version {
		return Result{}, false
	}
	if s.now().Sub(entry.result.ComputedAt) > s.cfg.CacheTTL {
		delete(s.cache, scope)
		return Result{}, false
	}
	return entry.result, true
}

// superseded reports whether the scope's version moved past version
func (s *Service) superseded(scope string, version uint64) bool {
	_, current, err := scopeAssets(s.state.GetState(), scope)
	if err != nil {
		return true
	}
	return current != version
}

func resolveScope(state portfolio.State, scope string) string {
	if scope != "" {
		return scope
	}
	if state.SelectedPortfolioID != "" {
		return state.SelectedPortfolioID
	}
	return ScopeAll
}

// scopeAssets returns the assets in scope and the version that identifies them:
// the portfolio revision for a single portfolio, the store version for ScopeAll.
func scopeAssets(state portfolio.State, scope string) ([]domain.Asset, uint64, error) {
	if scope == ScopeAll {
		var assets []domain.Asset
		for _, p := range state.Portfolios {
			assets = append(assets, p.Assets...)
		}
		return assets, state.Version, nil
	}

	p, ok := state.Portfolio(scope)
	if !ok {
		return nil, 0, domain.NewNotFoundError("portfolio", scope)
	}
	return p.Assets, p.Revision, nil
}

func tickers(assets []domain.Asset) []string {
	seen := make(map[string]bool, len(assets))
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		if seen[a.Ticker] {
			continue
		}
		seen[a.Ticker] = true
		out = append(out, a.Ticker)
	}
	return out
}
