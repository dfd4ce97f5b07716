package aggregation

import (
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/valuation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func asset(id, ticker string, t domain.AssetType, qty, price string) domain.Asset {
	return domain.Asset{
		ID:          id,
		Ticker:      ticker,
		Name:        ticker,
		AssetType:   t,
		Quantity:    d(qty),
		AvgBuyPrice: d(price),
	}
}

func fresh(ticker, price string) domain.QuoteResult {
	return domain.QuoteResult{
		Ticker: ticker,
		Quote:  &domain.Quote{Ticker: ticker, CurrentPrice: d(price), Currency: "USD"},
	}
}

func TestComputeStats_AllocationExample(t *testing.T) {
	assets := []domain.Asset{
		asset("1", "BTC-USD", domain.AssetTypeCoin, "10", "40000"),
		asset("2", "005930.KS", domain.AssetTypeStock, "10", "70000"),
	}
	quotes := domain.QuoteSet{
		"BTC-USD":   fresh("BTC-USD", "50000"),
		"005930.KS": fresh("005930.KS", "80000"),
	}

	stats := ComputeStats(assets, quotes, valuation.FallbackCostBasis)

	require.Len(t, stats.AssetAllocations, 2)
	assert.Equal(t, domain.AssetTypeStock, stats.AssetAllocations[0].AssetType)
	assert.True(t, stats.AssetAllocations[0].Value.Equal(d("800000")))
	assert.Equal(t, "61.54", valuation.RoundPercent(stats.AssetAllocations[0].Percentage).StringFixed(2))
	assert.Equal(t, domain.AssetTypeCoin, stats.AssetAllocations[1].AssetType)
	assert.True(t, stats.AssetAllocations[1].Value.Equal(d("500000")))
	assert.Equal(t, "38.46", valuation.RoundPercent(stats.AssetAllocations[1].Percentage).StringFixed(2))

	assert.True(t, stats.TotalMarketValue.Equal(d("1300000")))
	assert.True(t, stats.TotalInitialInvestment.Equal(d("1100000")))
	assert.True(t, stats.TotalGainLoss.Equal(d("200000")))
	assert.Equal(t, "18.18", valuation.RoundPercent(stats.TotalReturnRate).StringFixed(2))
	assert.Equal(t, 0, stats.StaleCount)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil, nil, valuation.FallbackCostBasis)

	assert.True(t, stats.TotalMarketValue.IsZero())
	assert.True(t, stats.TotalInitialInvestment.IsZero())
	assert.True(t, stats.TotalGainLoss.IsZero())
	assert.True(t, stats.TotalReturnRate.IsZero())
	assert.NotNil(t, stats.AssetAllocations)
	assert.Empty(t, stats.AssetAllocations)
	assert.Empty(t, stats.Valuations)
}

func TestComputeStats_AllocationSumsMatchTotal(t *testing.T) {
	assets := []domain.Asset{
		asset("1", "AAPL", domain.AssetTypeStock, "3", "150"),
		asset("2", "TSLA", domain.AssetTypeStock, "1.5", "200"),
		asset("3", "ETH-USD", domain.AssetTypeCoin, "0.333", "2000"),
		asset("4", "USDT-USD", domain.AssetTypeStablecoin, "1000", "1"),
		asset("5", "UNI-USD", domain.AssetTypeDeFi, "7", "6.1"),
	}
	quotes := domain.QuoteSet{
		"AAPL":     fresh("AAPL", "175.13"),
		"TSLA":     fresh("TSLA", "242.7"),
		"ETH-USD":  fresh("ETH-USD", "2533.91"),
		"USDT-USD": fresh("USDT-USD", "1.0001"),
		"UNI-USD":  fresh("UNI-USD", "7.77"),
	}

	stats := ComputeStats(assets, quotes, valuation.FallbackCostBasis)

	sum := decimal.Zero
	pct := decimal.Zero
	for _, a := range stats.AssetAllocations {
		sum = sum.Add(a.Value)
		pct = pct.Add(a.Percentage)
	}
	assert.True(t, sum.Equal(stats.TotalMarketValue), "%s != %s", sum, stats.TotalMarketValue)
	assert.InDelta(t, 100.0, pct.InexactFloat64(), 1e-6)

	for i := 1; i < len(stats.AssetAllocations); i++ {
		assert.True(t, stats.AssetAllocations[i-1].Value.GreaterThanOrEqual(stats.AssetAllocations[i].Value))
	}
}

func TestComputeStats_TieBrokenByTypeOrder(t *testing.T) {
	assets := []domain.Asset{
		asset("1", "NFT1", domain.AssetTypeNFT, "1", "100"),
		asset("2", "AAPL", domain.AssetTypeStock, "1", "100"),
	}
	quotes := domain.QuoteSet{
		"NFT1": fresh("NFT1", "100"),
		"AAPL": fresh("AAPL", "100"),
	}

	stats := ComputeStats(assets, quotes, valuation.FallbackCostBasis)

	require.Len(t, stats.AssetAllocations, 2)
	assert.Equal(t, domain.AssetTypeStock, stats.AssetAllocations[0].AssetType)
	assert.Equal(t, domain.AssetTypeNFT, stats.AssetAllocations[1].AssetType)
	assert.Equal(t, "50", stats.AssetAllocations[0].Percentage.String())
}

func TestComputeStats_MissingQuoteFallsBackToCostBasis(t *testing.T) {
	assets := []domain.Asset{
		asset("1", "AAPL", domain.AssetTypeStock, "10", "150"),
		asset("2", "TSLA", domain.AssetTypeStock, "2", "200"),
	}
	quotes := domain.QuoteSet{
		"AAPL": fresh("AAPL", "175"),
	}

	stats := ComputeStats(assets, quotes, valuation.FallbackCostBasis)

	assert.Equal(t, 1, stats.StaleCount)
	assert.True(t, stats.TotalMarketValue.Equal(d("2150")))
	assert.True(t, stats.TotalInitialInvestment.Equal(d("1900")))
	assert.True(t, stats.TotalGainLoss.Equal(d("250")))

	require.Len(t, stats.Valuations, 2)
	assert.False(t, stats.Valuations[0].Stale)
	assert.True(t, stats.Valuations[1].Stale)
	assert.Equal(t, valuation.SourceCostBasis, stats.Valuations[1].Source)
}

func TestComputeStats_ZeroMarketValue(t *testing.T) {
	assets := []domain.Asset{
		asset("1", "DEAD", domain.AssetTypeOther, "5", "10"),
	}
	quotes := domain.QuoteSet{"DEAD": fresh("DEAD", "0")}

	stats := ComputeStats(assets, quotes, valuation.FallbackCostBasis)

	require.Len(t, stats.AssetAllocations, 1)
	assert.True(t, stats.AssetAllocations[0].Percentage.IsZero())
	assert.Equal(t, "-100.00", stats.TotalReturnRate.StringFixed(2))
}
