package aggregation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	prices map[string]string
	calls  atomic.Int32
	during func()
}

func (f *fakeResolver) Resolve(_ context.Context, tickers []string) domain.QuoteSet {
	f.calls.Add(1)
	if f.during != nil {
		f.during()
	}
	set := make(domain.QuoteSet, len(tickers))
	for _, t := range tickers {
		price, ok := f.prices[t]
		if !ok {
			set[t] = domain.QuoteResult{Ticker: t, Stale: true, Err: domain.NewQuoteUnavailableError(t, nil)}
			continue
		}
		set[t] = fresh(t, price)
	}
	return set
}

func setupService(t *testing.T, resolver *fakeResolver) (*Service, *portfolio.Registry) {
	t.Helper()
	store := portfolio.NewStore(zerolog.Nop())
	registry := portfolio.NewRegistry(store, zerolog.Nop())
	svc := NewService(store, resolver, ServiceConfig{}, zerolog.Nop())
	store.Subscribe(svc.Invalidate)
	return svc, registry
}

func addAsset(t *testing.T, r *portfolio.Registry, portfolioID, ticker, assetType, qty, price string) domain.Asset {
	t.Helper()
	a, err := r.AddAsset(portfolioID, portfolio.AssetDraft{
		Ticker:      ticker,
		AssetType:   assetType,
		Quantity:    d(qty),
		AvgBuyPrice: d(price),
	})
	require.NoError(t, err)
	return a
}

func TestService_StatsForPortfolio(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175"}}
	svc, registry := setupService(t, resolver)

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)
	addAsset(t, registry, p.ID, "AAPL", "STOCK", "10", "150")

	res, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, p.ID, res.Scope)
	assert.False(t, res.Superseded)
	assert.True(t, res.Stats.TotalMarketValue.Equal(d("1750")))
	assert.True(t, res.Stats.TotalGainLoss.Equal(d("250")))
}

func TestService_EmptyScopeUsesSelectedPortfolio(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175"}}
	svc, registry := setupService(t, resolver)

	res, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, res.Scope)
	assert.True(t, res.Stats.TotalMarketValue.IsZero())
	assert.Empty(t, res.Stats.AssetAllocations)

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)

	res, err = svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Scope)
}

func TestService_StatsAllPortfolios(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175", "BTC-USD": "50000"}}
	svc, registry := setupService(t, resolver)

	a, err := registry.CreatePortfolio("Stocks")
	require.NoError(t, err)
	b, err := registry.CreatePortfolio("Crypto")
	require.NoError(t, err)
	addAsset(t, registry, a.ID, "AAPL", "STOCK", "10", "150")
	addAsset(t, registry, b.ID, "BTC-USD", "COIN", "1", "40000")

	res, err := svc.Stats(context.Background(), ScopeAll)
	require.NoError(t, err)

	assert.True(t, res.Stats.TotalMarketValue.Equal(d("51750")))
	require.Len(t, res.Stats.AssetAllocations, 2)
	assert.Equal(t, domain.AssetTypeCoin, res.Stats.AssetAllocations[0].AssetType)
}

func TestService_UnknownPortfolio(t *testing.T) {
	svc, _ := setupService(t, &fakeResolver{})

	_, err := svc.Stats(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_CachesUntilMutation(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175", "TSLA": "250"}}
	svc, registry := setupService(t, resolver)

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)
	addAsset(t, registry, p.ID, "AAPL", "STOCK", "10", "150")

	_, err = svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), resolver.calls.Load())

	addAsset(t, registry, p.ID, "TSLA", "STOCK", "1", "200")

	res, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), resolver.calls.Load())
	assert.True(t, res.Stats.TotalMarketValue.Equal(d("2000")))
}

func TestService_DeletedAssetNotCounted(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175", "TSLA": "250"}}
	svc, registry := setupService(t, resolver)

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)
	addAsset(t, registry, p.ID, "AAPL", "STOCK", "10", "150")
	tsla := addAsset(t, registry, p.ID, "TSLA", "STOCK", "1", "200")

	require.NoError(t, registry.DeleteAsset(p.ID, tsla.ID))

	res, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, res.Stats.TotalMarketValue.Equal(d("1750")))
	require.Len(t, res.Stats.Valuations, 1)
	assert.Equal(t, "AAPL", res.Stats.Valuations[0].Ticker)
}

func TestService_SupersededResultIsNotCached(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175"}}
	svc, registry := setupService(t, resolver)

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)
	aapl := addAsset(t, registry, p.ID, "AAPL", "STOCK", "10", "150")

	mutated := false
	resolver.during = func() {
		if mutated {
			return
		}
		mutated = true
		require.NoError(t, registry.DeleteAsset(p.ID, aapl.ID))
	}

	res, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, res.Superseded)

	res, err = svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, res.Superseded)
	assert.True(t, res.Stats.TotalMarketValue.IsZero())
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestService_CacheExpires(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175"}}
	svc, registry := setupService(t, resolver)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)
	addAsset(t, registry, p.ID, "AAPL", "STOCK", "10", "150")

	_, err = svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestService_QuoteFailureDoesNotFailStats(t *testing.T) {
	resolver := &fakeResolver{prices: map[string]string{"AAPL": "175"}}
	svc, registry := setupService(t, resolver)

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)
	addAsset(t, registry, p.ID, "AAPL", "STOCK", "10", "150")
	addAsset(t, registry, p.ID, "NOPE", "OTHER", "2", "50")

	res, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.StaleCount)
	assert.True(t, res.Stats.TotalMarketValue.Equal(d("1850")))
}
