package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/clientdata"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ClientDataCache stores quotes in the client data database
type ClientDataCache struct {
	repo *clientdata.Repository
	ttl  time.Duration
}

// NewClientDataCache creates a quote cache with the given freshness window
func NewClientDataCache(repo *clientdata.Repository, ttl time.Duration) *ClientDataCache {
	if ttl <= 0 {
		ttl = clientdata.TTLCurrentPrice
	}
	return &ClientDataCache{repo: repo, ttl: ttl}
}

// GetFresh returns a cached quote that has not expired
func (c *ClientDataCache) GetFresh(ticker string) (*domain.Quote, error) {
	raw, err := c.repo.GetIfFresh(clientdata.TableCurrentPrices, ticker)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeQuote(raw)
}

// GetAny returns the cached quote regardless of expiry
func (c *ClientDataCache) GetAny(ticker string) (*domain.Quote, error) {
	entry, err := c.repo.Get(clientdata.TableCurrentPrices, ticker)
	if err != nil || entry == nil {
		return nil, err
	}
	return decodeQuote(entry.Data)
}

// Put stores q for the cache TTL
func (c *ClientDataCache) Put(q domain.Quote) error {
	return c.repo.Store(clientdata.TableCurrentPrices, q.Ticker, q, c.ttl)
}

func decodeQuote(raw json.RawMessage) (*domain.Quote, error) {
	var q domain.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached quote: %w", err)
	}
	return &q, nil
}

// CachedHistoryGateway serves daily closes from the client data cache,
// falling through to the wrapped gateway and back to stale rows on failure.
type CachedHistoryGateway struct {
	next domain.HistoryGateway
	repo *clientdata.Repository
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedHistoryGateway wraps next with a cache
func NewCachedHistoryGateway(next domain.HistoryGateway, repo *clientdata.Repository, log zerolog.Logger) *CachedHistoryGateway {
	return &CachedHistoryGateway{
		next: next,
		repo: repo,
		ttl:  clientdata.TTLPriceHistory,
		log:  log.With().Str("client", "history_cache").Logger(),
	}
}

// FetchHistory implements domain.HistoryGateway
func (g *CachedHistoryGateway) FetchHistory(ctx context.Context, ticker string, days int) ([]domain.PricePoint, error) {
	key := fmt.Sprintf("%s:%d", ticker, days)

	if raw, err := g.repo.GetIfFresh(clientdata.TablePriceHistory, key); err == nil && raw != nil {
		var points []domain.PricePoint
		if err := json.Unmarshal(raw, &points); err == nil {
			return points, nil
		}
	}

	points, err := g.next.FetchHistory(ctx, ticker, days)
	if err == nil {
		if storeErr := g.repo.Store(clientdata.TablePriceHistory, key, points, g.ttl); storeErr != nil {
			g.log.Warn().Err(storeErr).Str("ticker", ticker).Msg("Failed to cache price history")
		}
		return points, nil
	}

	entry, getErr := g.repo.Get(clientdata.TablePriceHistory, key)
	if getErr == nil && entry != nil {
		var stale []domain.PricePoint
		if json.Unmarshal(entry.Data, &stale) == nil {
			g.log.Warn().Err(err).Str("ticker", ticker).Msg("Using stale cached price history")
			return stale, nil
		}
	}

	return nil, err
}
