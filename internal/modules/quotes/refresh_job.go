package quotes

import (
	"context"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// TickerSource lists every ticker currently held
type TickerSource interface {
	Tickers() []string
}

// RefreshJob warms the quote cache for every held ticker
type RefreshJob struct {
	source    TickerSource
	resolver  *Resolver
	timeout   time.Duration
	onRefresh func(domain.QuoteSet)
	log       zerolog.Logger
}

// NewRefreshJob creates a refresh job. onRefresh, if set, runs after each cycle.
func NewRefreshJob(source TickerSource, resolver *Resolver, timeout time.Duration, onRefresh func(domain.QuoteSet), log zerolog.Logger) *RefreshJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RefreshJob{
		source:    source,
		resolver:  resolver,
		timeout:   timeout,
		onRefresh: onRefresh,
		log:       log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Run resolves all held tickers once
func (j *RefreshJob) Run() error {
	tickers := j.source.Tickers()
	if len(tickers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// Fresh cache hits would make this a no-op, so go to the gateway directly
	set := j.resolver.Refresh(ctx, tickers)

	stale := 0
	for _, r := range set {
		if r.Stale {
			stale++
		}
	}

	j.log.Info().
		Int("tickers", len(tickers)).
		Int("stale", stale).
		Msg("Quote refresh completed")

	if j.onRefresh != nil {
		j.onRefresh(set)
	}

	return nil
}

// Name returns the job name for scheduling and logging
func (j *RefreshJob) Name() string {
	return "quote_refresh"
}
