package quotes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/clientdata"
	"github.com/aristath/stockfolio/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cacheSchema = `
CREATE TABLE current_prices (ticker TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE price_history (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
`

func setupCacheRepo(t *testing.T) *clientdata.Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(cacheSchema)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

func TestClientDataCache_RoundTrip(t *testing.T) {
	cache := NewClientDataCache(setupCacheRepo(t), time.Hour)
	asOf := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	require.NoError(t, cache.Put(domain.Quote{
		Ticker:       "005930.KS",
		CurrentPrice: decimal.RequireFromString("71200"),
		Currency:     "KRW",
		AsOf:         asOf,
	}))

	q, err := cache.GetFresh("005930.KS")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.True(t, q.CurrentPrice.Equal(decimal.RequireFromString("71200")))
	assert.Equal(t, "KRW", q.Currency)
	assert.True(t, q.AsOf.Equal(asOf))

	missing, err := cache.GetFresh("AAPL")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClientDataCache_ExpiredStillAvailableAsFallback(t *testing.T) {
	repo := setupCacheRepo(t)
	require.NoError(t, repo.Store(clientdata.TableCurrentPrices, "AAPL",
		domain.Quote{Ticker: "AAPL", CurrentPrice: decimal.NewFromInt(150)}, -time.Minute))

	cache := NewClientDataCache(repo, time.Hour)

	fresh, err := cache.GetFresh("AAPL")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, err := cache.GetAny("AAPL")
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.Equal(t, "150", stale.CurrentPrice.String())
}

type fakeHistory struct {
	points []domain.PricePoint
	err    error
	calls  int
}

func (f *fakeHistory) FetchHistory(_ context.Context, _ string, _ int) ([]domain.PricePoint, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

func TestCachedHistoryGateway(t *testing.T) {
	repo := setupCacheRepo(t)
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	next := &fakeHistory{points: []domain.PricePoint{
		{Date: day, Price: decimal.NewFromInt(100)},
		{Date: day.AddDate(0, 0, 1), Price: decimal.NewFromInt(101)},
	}}
	gw := NewCachedHistoryGateway(next, repo, zerolog.Nop())

	points, err := gw.FetchHistory(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)

	points, err = gw.FetchHistory(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 1, next.calls)
	assert.True(t, points[1].Price.Equal(decimal.NewFromInt(101)))
}

func TestCachedHistoryGateway_StaleFallback(t *testing.T) {
	repo := setupCacheRepo(t)
	require.NoError(t, repo.Store(clientdata.TablePriceHistory, "AAPL:30",
		[]domain.PricePoint{{Date: time.Now(), Price: decimal.NewFromInt(99)}}, -time.Hour))

	next := &fakeHistory{err: errors.New("upstream down")}
	gw := NewCachedHistoryGateway(next, repo, zerolog.Nop())

	points, err := gw.FetchHistory(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, points, 1)

	_, err = gw.FetchHistory(context.Background(), "TSLA", 30)
	assert.Error(t, err)
}
