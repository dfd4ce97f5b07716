// Package static provides a deterministic in-memory quote source for
// development and tests. It never produces fabricated history.
package static

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// Gateway serves quotes from a fixed price table
type Gateway struct {
	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	currency map[string]string
	now      func() time.Time
}

// NewGateway creates an empty gateway
func NewGateway() *Gateway {
	return &Gateway{
		prices:   make(map[string]decimal.Decimal),
		currency: make(map[string]string),
		now:      time.Now,
	}
}

// ParseTable builds a gateway from "TICKER=PRICE[:CURRENCY]" pairs separated
// by commas, e.g. "AAPL=175,005930.KS=71200:KRW".
func ParseTable(table string) (*Gateway, error) {
	g := NewGateway()
	for _, entry := range strings.Split(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		ticker, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid static quote %q: want TICKER=PRICE", entry)
		}
		priceStr, currency, _ := strings.Cut(rest, ":")

		price, err := decimal.NewFromString(strings.TrimSpace(priceStr))
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", ticker, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("negative price for %s", ticker)
		}
		g.Set(ticker, price, currency)
	}
	return g, nil
}

// Set stores a price for ticker. An empty currency means USD.
func (g *Gateway) Set(ticker string, price decimal.Decimal, currency string) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[ticker] = price
	g.currency[ticker] = currency
}

// Remove drops ticker so subsequent fetches fail
func (g *Gateway) Remove(ticker string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.prices, ticker)
	delete(g.currency, ticker)
}

// FetchQuote implements domain.QuoteGateway
func (g *Gateway) FetchQuote(ctx context.Context, ticker string) (domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, domain.NewQuoteUnavailableError(ticker, err)
	}

	g.mu.RLock()
	price, ok := g.prices[ticker]
	currency := g.currency[ticker]
	g.mu.RUnlock()

	if !ok {
		return domain.Quote{}, domain.NewQuoteUnavailableError(ticker, fmt.Errorf("no static price"))
	}

	return domain.Quote{
		Ticker:       ticker,
		CurrentPrice: price,
		Currency:     currency,
		AsOf:         g.now().UTC(),
	}, nil
}

// FetchHistory implements domain.HistoryGateway. A static table has no history,
// so callers fall back to the labeled interpolation.
func (g *Gateway) FetchHistory(_ context.Context, ticker string, _ int) ([]domain.PricePoint, error) {
	return nil, domain.NewQuoteUnavailableError(ticker, fmt.Errorf("static source has no history"))
}
