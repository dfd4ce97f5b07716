// Package quotes resolves current prices for a refresh cycle on top of a QuoteGateway.
//
// Responsibilities:
//   - Fan out distinct tickers concurrently
//   - Share one in-flight fetch between concurrent requests for the same ticker
//   - Serve fresh cached quotes without hitting the gateway
//   - Degrade a failed fetch to the last known quote, flagged stale
//
// Nothing here retries; retry policy belongs to the gateway.
package quotes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultConcurrency = 8

// Cache stores quotes across refresh cycles.
// GetFresh returns nil when no unexpired entry exists; GetAny ignores expiry.
type Cache interface {
	GetFresh(ticker string) (*domain.Quote, error)
	GetAny(ticker string) (*domain.Quote, error)
	Put(q domain.Quote) error
}

// ResolverConfig tunes the resolver
type ResolverConfig struct {
	FetchTimeout time.Duration
	Concurrency  int
}

// Resolver implements quote resolution with de-duplication and stale fallback
type Resolver struct {
	gateway   domain.QuoteGateway
	cache     Cache // optional
	group     singleflight.Group
	mu        sync.RWMutex
	lastKnown map[string]domain.Quote
	cfg       ResolverConfig
	log       zerolog.Logger
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(gateway domain.QuoteGateway, cache Cache, cfg ResolverConfig, log zerolog.Logger) *Resolver {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Resolver{
		gateway:   gateway,
		cache:     cache,
		lastKnown: make(map[string]domain.Quote),
		cfg:       cfg,
		log:       log.With().Str("service", "quote_resolver").Logger(),
	}
}

// Resolve returns one result per distinct ticker. It never fails as a whole:
// per-ticker failures are captured in the result.
func (r *Resolver) Resolve(ctx context.Context, tickers []string) domain.QuoteSet {
	return r.resolveAll(ctx, tickers, true)
}

// Refresh is Resolve without fresh cache reads; every ticker goes to the gateway
func (r *Resolver) Refresh(ctx context.Context, tickers []string) domain.QuoteSet {
	return r.resolveAll(ctx, tickers, false)
}

func (r *Resolver) resolveAll(ctx context.Context, tickers []string, useCache bool) domain.QuoteSet {
	distinct := dedupe(tickers)
	results := make([]domain.QuoteResult, len(distinct))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, ticker := range distinct {
		i, ticker := i, ticker
		g.Go(func() error {
			results[i] = r.quote(gctx, ticker, useCache)
			return nil
		})
	}
	_ = g.Wait()

	set := make(domain.QuoteSet, len(distinct))
	stale := 0
	for _, res := range results {
		set[res.Ticker] = res
		if res.Stale {
			stale++
		}
	}

	if stale > 0 {
		r.log.Warn().
			Int("tickers", len(distinct)).
			Int("stale", stale).
			Msg("Some quotes unavailable, using fallback")
	}

	return set
}

// Quote resolves a single ticker
func (r *Resolver) Quote(ctx context.Context, ticker string) domain.QuoteResult {
	return r.quote(ctx, ticker, true)
}

func (r *Resolver) quote(ctx context.Context, ticker string, useCache bool) domain.QuoteResult {
	if useCache && r.cache != nil {
		q, err := r.cache.GetFresh(ticker)
		if err != nil {
			r.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read quote cache")
		} else if q != nil {
			r.remember(*q)
			return domain.QuoteResult{Ticker: ticker, Quote: q}
		}
	}

	q, err := r.fetch(ctx, ticker)
	if err == nil {
		return domain.QuoteResult{Ticker: ticker, Quote: &q}
	}

	var unavailable *domain.QuoteUnavailableError
	if !errors.As(err, &unavailable) {
		unavailable = domain.NewQuoteUnavailableError(ticker, err)
	}

	r.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote fetch failed")

	return domain.QuoteResult{
		Ticker: ticker,
		Quote:  r.lastKnownQuote(ticker),
		Stale:  true,
		Err:    unavailable,
	}
}

// fetch calls the gateway through the single-flight group. The shared call runs
// detached from any one caller's cancellation; each caller still stops waiting
// when its own context ends.
func (r *Resolver) fetch(ctx context.Context, ticker string) (domain.Quote, error) {
	ch := r.group.DoChan(ticker, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FetchTimeout)
		defer cancel()

		q, err := r.gateway.FetchQuote(fetchCtx, ticker)
		if err != nil {
			return nil, err
		}
		if q.Ticker == "" {
			q.Ticker = ticker
		}
		if q.CurrentPrice.IsNegative() {
			return nil, domain.NewQuoteUnavailableError(ticker, errors.New("negative price"))
		}

		r.remember(q)
		if r.cache != nil {
			if err := r.cache.Put(q); err != nil {
				r.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache quote")
			}
		}

		r.log.Debug().
			Str("ticker", ticker).
			Str("price", q.CurrentPrice.String()).
			Msg("Fetched quote")

		return q, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Quote{}, res.Err
		}
		return res.Val.(domain.Quote), nil
	case <-ctx.Done():
		return domain.Quote{}, domain.NewQuoteUnavailableError(ticker, ctx.Err())
	}
}

// LastKnown returns the most recent successful quote seen for ticker, if any
func (r *Resolver) LastKnown(ticker string) (domain.Quote, bool) {
	q := r.lastKnownQuote(ticker)
	if q == nil {
		return domain.Quote{}, false
	}
	return *q, true
}

func (r *Resolver) lastKnownQuote(ticker string) *domain.Quote {
	r.mu.RLock()
	q, ok := r.lastKnown[ticker]
	r.mu.RUnlock()
	if ok {
		return &q
	}

	if r.cache == nil {
		return nil
	}
	cached, err := r.cache.GetAny(ticker)
	if err != nil || cached == nil {
		return nil
	}
	return cached
}

func (r *Resolver) remember(q domain.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.lastKnown[q.Ticker]; ok && prev.AsOf.After(q.AsOf) {
		return
	}
	r.lastKnown[q.Ticker] = q
}

func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
