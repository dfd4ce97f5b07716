// Package aggregation folds per-asset valuations into portfolio summary statistics.
package aggregation

import (
	"sort"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Allocation is the share of market value held by one asset type
type Allocation struct {
	AssetType  domain.AssetType
	Value      decimal.Decimal
	Percentage decimal.Decimal
}

// Stats is the aggregate view of a set of assets.
// Allocation values sum to TotalMarketValue exactly.
type Stats struct {
	TotalMarketValue       decimal.Decimal
	TotalInitialInvestment decimal.Decimal
	TotalGainLoss          decimal.Decimal
	TotalReturnRate        decimal.Decimal
	AssetAllocations       []Allocation
	Valuations             []valuation.Result
	StaleCount             int
}

// ComputeStats values every asset against quotes and aggregates the results.
// A ticker missing from quotes is treated as unavailable and goes through policy.
// An empty asset list yields all-zero stats with no allocations.
func ComputeStats(assets []domain.Asset, quotes domain.QuoteSet, policy valuation.FallbackPolicy) Stats {
	stats := Stats{
		TotalMarketValue:       decimal.Zero,
		TotalInitialInvestment: decimal.Zero,
		TotalGainLoss:          decimal.Zero,
		TotalReturnRate:        decimal.Zero,
		AssetAllocations:       []Allocation{},
		Valuations:             make([]valuation.Result, 0, len(assets)),
	}

	byType := make(map[domain.AssetType]decimal.Decimal)

	for _, asset := range assets {
		qr, ok := quotes[asset.Ticker]
		if !ok {
			qr = domain.QuoteResult{
				Ticker: asset.Ticker,
				Stale:  true,
				Err:    domain.NewQuoteUnavailableError(asset.Ticker, nil),
			}
		}

		r := valuation.Resolve(asset, qr, policy)
		stats.Valuations = append(stats.Valuations, r)
		if r.Stale {
			stats.StaleCount++
		}

		stats.TotalMarketValue = stats.TotalMarketValue.Add(r.MarketValue)
		stats.TotalInitialInvestment = stats.TotalInitialInvestment.Add(r.CostBasis)
		byType[r.AssetType] = byType[r.AssetType].Add(r.MarketValue)
	}

	stats.TotalGainLoss = stats.TotalMarketValue.Sub(stats.TotalInitialInvestment)
	stats.TotalReturnRate = valuation.ReturnRate(stats.TotalGainLoss, stats.TotalInitialInvestment)
	stats.AssetAllocations = allocations(byType, stats.TotalMarketValue)

	return stats
}

// allocations builds the per-type breakdown sorted by value descending,
// ties broken by the asset type declaration order.
func allocations(byType map[domain.AssetType]decimal.Decimal, total decimal.Decimal) []Allocation {
	out := make([]Allocation, 0, len(byType))
	for _, t := range domain.AssetTypes {
		value, ok := byType[t]
		if !ok {
			continue
		}
		pct := decimal.Zero
		if total.IsPositive() {
			pct = value.Div(total).Mul(hundred)
		}
		out = append(out, Allocation{AssetType: t, Value: value, Percentage: pct})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})

	return out
}
