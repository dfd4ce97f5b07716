// Package valuation turns an asset and its quote into market value and gain/loss figures.
//
// All arithmetic uses shopspring/decimal at full precision. Rounding for display lives
// in display.go and must never be fed back into these values.
package valuation

import (
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FallbackPolicy decides how an asset is valued when its live quote is unavailable.
type FallbackPolicy string

const (
	// FallbackCostBasis values the asset at its cost basis (no gain, no loss).
	FallbackCostBasis FallbackPolicy = "cost_basis"
	// FallbackLastKnown reuses the last known price when one exists,
	// otherwise falls back to cost basis.
	FallbackLastKnown FallbackPolicy = "last_known"
)

// ParseFallbackPolicy validates a configured policy name
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case FallbackCostBasis, FallbackLastKnown:
		return FallbackPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown stale quote policy %q (must be cost_basis or last_known)", s)
	}
}

// PriceSource tells where the market value came from
type PriceSource string

const (
	SourceLive      PriceSource = "live"
	SourceLastKnown PriceSource = "last_known"
	SourceCostBasis PriceSource = "cost_basis"
)

// Result is the derived valuation of one asset
type Result struct {
	AssetID       string
	Ticker        string
	Name          string
	AssetType     domain.AssetType
	Quantity      decimal.Decimal
	AvgBuyPrice   decimal.Decimal
	CurrentPrice  *decimal.Decimal // nil when no price is known at all
	Currency      string
	QuoteAsOf     *time.Time
	MarketValue   decimal.Decimal
	CostBasis     decimal.Decimal
	GainLoss      decimal.Decimal
	ReturnRatePct decimal.Decimal
	Stale         bool
	Source        PriceSource
}

// Value computes the valuation of asset at the quote's price. It is pure.
func Value(asset domain.Asset, quote domain.Quote) Result {
	r := base(asset)
	price := quote.CurrentPrice
	asOf := quote.AsOf
	r.CurrentPrice = &price
	r.Currency = quote.Currency
	r.QuoteAsOf = &asOf
	r.Source = SourceLive
	r.MarketValue = asset.Quantity.Mul(price)
	return finish(r)
}

// Resolve values asset from a resolution outcome, applying policy when it is stale.
// A stale asset valued at cost basis reports zero gain; its last known price, if any,
// is still carried for display.
func Resolve(asset domain.Asset, qr domain.QuoteResult, policy FallbackPolicy) Result {
	if !qr.Stale && qr.Quote != nil {
		return Value(asset, *qr.Quote)
	}

	r := base(asset)
	r.Stale = true

	if qr.Quote != nil {
		price := qr.Quote.CurrentPrice
		asOf := qr.Quote.AsOf
		r.CurrentPrice = &price
		r.Currency = qr.Quote.Currency
		r.QuoteAsOf = &asOf

		if policy == FallbackLastKnown {
			r.Source = SourceLastKnown
			r.MarketValue = asset.Quantity.Mul(price)
			return finish(r)
		}
	}

	r.Source = SourceCostBasis
	r.MarketValue = r.CostBasis
	return finish(r)
}

func base(asset domain.Asset) Result {
	return Result{
		AssetID:     asset.ID,
		Ticker:      asset.Ticker,
		Name:        asset.Name,
		AssetType:   asset.AssetType,
		Quantity:    asset.Quantity,
		AvgBuyPrice: asset.AvgBuyPrice,
		CostBasis:   asset.CostBasis(),
	}
}

func finish(r Result) Result {
	r.GainLoss = r.MarketValue.Sub(r.CostBasis)
	r.ReturnRatePct = ReturnRate(r.GainLoss, r.CostBasis)
	return r
}

// ReturnRate returns gain / basis * 100, or 0 when basis is not positive
func ReturnRate(gain, basis decimal.Decimal) decimal.Decimal {
	if !basis.IsPositive() {
		return decimal.Zero
	}
	return gain.Div(basis).Mul(hundred)
}
