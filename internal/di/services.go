package di

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/stockfolio/internal/clientdata"
	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/aggregation"
	"github.com/aristath/stockfolio/internal/modules/history"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/quotes"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
	"github.com/aristath/stockfolio/internal/stream"
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories, clients and services, restores the
// store from its latest snapshot and subscribes the store listeners
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.SnapshotRepo = snapshots.NewRepository(container.StateDB.Conn())

	container.Store = portfolio.NewStore(log)
	container.Registry = portfolio.NewRegistry(container.Store, log)

	if cfg.SnapshotEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		restored, err := snapshots.RestoreLatest(ctx, container.SnapshotRepo, container.Store)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to restore store: %w", err)
		}
		if !restored {
			log.Info().Msg("No snapshot found, starting with an empty store")
		}
	}

	quoteGateway, historyGateway, err := NewQuoteProviders(cfg, log)
	if err != nil {
		return err
	}
	container.QuoteGateway = quoteGateway
	if historyGateway != nil {
		container.HistoryGateway = quotes.NewCachedHistoryGateway(historyGateway, container.ClientDataRepo, log)
	}

	container.Resolver = quotes.NewResolver(
		container.QuoteGateway,
		quotes.NewClientDataCache(container.ClientDataRepo, cfg.QuoteCacheTTL),
		quotes.ResolverConfig{FetchTimeout: cfg.QuoteTimeout},
		log,
	)

	container.Stats = aggregation.NewService(container.Store, container.Resolver, aggregation.ServiceConfig{
		Policy:   cfg.StalePolicy,
		CacheTTL: cfg.StatsCacheTTL,
	}, log)

	container.History = history.NewService(container.Stats, container.HistoryGateway, cfg.DefaultHistory, log)
	container.Hub = stream.NewHub(log)

	container.Store.Subscribe(container.Stats.Invalidate)
	container.Store.Subscribe(container.Hub.Listen)
	if cfg.SnapshotEnabled {
		container.Persister = snapshots.NewPersister(container.Store, container.SnapshotRepo, cfg.SnapshotKeep, log)
		container.Store.Subscribe(container.Persister.Listen)
	}

	log.Info().
		Str("quote_provider", cfg.QuoteProvider).
		Bool("history", container.HistoryGateway != nil).
		Str("stale_policy", string(cfg.StalePolicy)).
		Msg("Services initialized")

	return nil
}

// onQuotesRefreshed drops cached stats and tells stream clients to refetch
func onQuotesRefreshed(container *Container) func(domain.QuoteSet) {
	return func(set domain.QuoteSet) {
		container.Stats.Flush()

		tickers := make([]string, 0, len(set))
		for t := range set {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)

		container.Hub.Publish(stream.Event{
			Type:    stream.EventQuotesRefreshed,
			Version: container.Store.Version(),
			Tickers: tickers,
		})
	}
}
