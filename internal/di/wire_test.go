package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/modules/aggregation"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/aristath/stockfolio/internal/stream"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:              t.TempDir(),
		LogLevel:             "info",
		Port:                 8080,
		QuoteProvider:        config.ProviderStatic,
		StaticQuotes:         "AAPL=175",
		QuoteTimeout:         time.Second,
		QuoteCacheTTL:        time.Minute,
		StatsCacheTTL:        time.Minute,
		StalePolicy:          valuation.FallbackCostBasis,
		DefaultHistory:       30,
		QuoteRefreshSchedule: "@every 1m",
		CacheCleanupSchedule: "@daily",
		MaintenanceSchedule:  "@hourly",
		SnapshotEnabled:      true,
		SnapshotKeep:         5,
	}
}

func TestWire_StaticProvider(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.Stats)
	assert.NotNil(t, container.Persister)
	assert.Nil(t, container.HistoryGateway)
	require.Len(t, container.Jobs, 3)
	assert.Equal(t, "quote_refresh", container.Jobs[0].Name())
	assert.Equal(t, "client_data_cleanup", container.Jobs[1].Name())
	assert.Equal(t, "database_maintenance", container.Jobs[2].Name())
	assert.Len(t, container.Scheduler.Status(), 3)

	p, err := container.Registry.CreatePortfolio("Main")
	require.NoError(t, err)
	_, err = container.Registry.AddAsset(p.ID, portfolio.AssetDraft{
		Ticker:      "aapl",
		AssetType:   "STOCK",
		Quantity:    decimal.NewFromInt(10),
		AvgBuyPrice: decimal.NewFromInt(150),
	})
	require.NoError(t, err)

	res, err := container.Stats.Stats(context.Background(), aggregation.ScopeAll)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1750).Equal(res.Stats.TotalMarketValue))
}

func TestWire_RefreshPublishesToStream(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotEnabled = false

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()
	assert.Nil(t, container.Persister)

	p, err := container.Registry.CreatePortfolio("Main")
	require.NoError(t, err)
	_, err = container.Registry.AddAsset(p.ID, portfolio.AssetDraft{
		Ticker:      "AAPL",
		AssetType:   "STOCK",
		Quantity:    decimal.NewFromInt(1),
		AvgBuyPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, events := container.Hub.Subscribe()
	require.NoError(t, container.Scheduler.RunNow(container.Jobs[0]))

	select {
	case ev := <-events:
		assert.Equal(t, stream.EventQuotesRefreshed, ev.Type)
		assert.Equal(t, []string{"AAPL"}, ev.Tickers)
		assert.Equal(t, container.Store.Version(), ev.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh event")
	}
}

func TestWire_RestoresLatestSnapshot(t *testing.T) {
	cfg := testConfig(t)

	first, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	p, err := first.Registry.CreatePortfolio("Kept")
	require.NoError(t, err)
	require.NoError(t, first.Persister.Flush(context.Background()))
	version := first.Store.Version()
	first.Close()

	second, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, version, second.Store.Version())
	got, err := second.Registry.GetPortfolio(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Name)
}

func TestWire_RejectsBadStaticTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.StaticQuotes = "AAPL"

	_, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
