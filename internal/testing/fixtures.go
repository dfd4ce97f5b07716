package testing

import (
	"testing"

	"github.com/aristath/stockfolio/internal/clients/static"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/shopspring/decimal"
)

// FixturePrices is a static quote table matching SeedPortfolio's tickers
const FixturePrices = "AAPL=175,BTC-USD=50000,005930.KS=80000:KRW"

// NewFixtureGateway returns a static gateway loaded with FixturePrices
func NewFixtureGateway(t *testing.T) *static.Gateway {
	t.Helper()
	g, err := static.ParseTable(FixturePrices)
	if err != nil {
		t.Fatalf("Failed to parse fixture prices: %v", err)
	}
	return g
}

// SeedPortfolio creates a portfolio holding one stock, one coin and one Korean listing
func SeedPortfolio(t *testing.T, r *portfolio.Registry, name string) domain.Portfolio {
	t.Helper()

	p, err := r.CreatePortfolio(name)
	if err != nil {
		t.Fatalf("Failed to create portfolio: %v", err)
	}

	drafts := []portfolio.AssetDraft{
		{Ticker: "AAPL", AssetType: "STOCK", Quantity: decimal.NewFromInt(10), AvgBuyPrice: decimal.NewFromInt(150)},
		{Ticker: "BTC-USD", AssetType: "COIN", Quantity: decimal.RequireFromString("0.5"), AvgBuyPrice: decimal.NewFromInt(40000)},
		{Ticker: "005930.KS", AssetType: "STOCK", Quantity: decimal.NewFromInt(10), AvgBuyPrice: decimal.NewFromInt(70000)},
	}
	for _, d := range drafts {
		if _, err := r.AddAsset(p.ID, d); err != nil {
			t.Fatalf("Failed to add %s: %v", d.Ticker, err)
		}
	}

	p, err = r.GetPortfolio(p.ID)
	if err != nil {
		t.Fatalf("Failed to reload portfolio: %v", err)
	}
	return p
}
