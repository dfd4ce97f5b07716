package portfolio

import (
	"fmt"
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry(NewStore(zerolog.Nop()), zerolog.Nop())
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return r
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func appleDraft() AssetDraft {
	return AssetDraft{
		Ticker:      "aapl",
		AssetType:   "STOCK",
		Quantity:    dec("10"),
		AvgBuyPrice: dec("150"),
	}
}

func TestRegistry_CreatePortfolio(t *testing.T) {
	r := newTestRegistry()

	p, err := r.CreatePortfolio("  Main  ")
	require.NoError(t, err)
	assert.Equal(t, "Main", p.Name)
	assert.Empty(t, p.Assets)
	assert.Equal(t, p.ID, r.Store().GetState().SelectedPortfolioID)

	second, err := r.CreatePortfolio("Crypto")
	require.NoError(t, err)
	assert.Equal(t, p.ID, r.Store().GetState().SelectedPortfolioID, "only the first portfolio is auto-selected")
	assert.NotEqual(t, p.ID, second.ID)
}

func TestRegistry_CreatePortfolioRejectsBlankName(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreatePortfolio("   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, uint64(0), r.Store().Version())
}

func TestRegistry_AddAsset(t *testing.T) {
	r := newTestRegistry()
	p, err := r.CreatePortfolio("Main")
	require.NoError(t, err)

	asset, err := r.AddAsset(p.ID, appleDraft())
	require.NoError(t, err)

	assert.Equal(t, "AAPL", asset.Ticker)
	assert.Equal(t, "Apple Inc.", asset.Name)
	assert.Equal(t, domain.AssetTypeStock, asset.AssetType)
	assert.NotEmpty(t, asset.ID)

	second, err := r.AddAsset(p.ID, AssetDraft{
		Ticker: "XYZ", AssetType: "other", Quantity: dec("1"), AvgBuyPrice: dec("2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "XYZ", second.Name, "unknown tickers default their name to the ticker")

	assets, err := r.ListAssets(p.ID)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, asset.ID, assets[0].ID)
	assert.Equal(t, second.ID, assets[1].ID)
}

func TestRegistry_AddAssetValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft AssetDraft
		field string
	}{
		{"empty ticker", AssetDraft{Ticker: "  ", AssetType: "STOCK", Quantity: dec("1"), AvgBuyPrice: dec("1")}, "ticker"},
		{"bad ticker chars", AssetDraft{Ticker: "AA PL", AssetType: "STOCK", Quantity: dec("1"), AvgBuyPrice: dec("1")}, "ticker"},
		{"zero quantity", AssetDraft{Ticker: "AAPL", AssetType: "STOCK", Quantity: dec("0"), AvgBuyPrice: dec("1")}, "quantity"},
		{"negative quantity", AssetDraft{Ticker: "AAPL", AssetType: "STOCK", Quantity: dec("-1"), AvgBuyPrice: dec("1")}, "quantity"},
		{"zero price", AssetDraft{Ticker: "AAPL", AssetType: "STOCK", Quantity: dec("1"), AvgBuyPrice: dec("0")}, "avgBuyPrice"},
		{"unknown type", AssetDraft{Ticker: "AAPL", AssetType: "BOND", Quantity: dec("1"), AvgBuyPrice: dec("1")}, "assetType"},
		{"tiny exponent quantity", AssetDraft{Ticker: "AAPL", AssetType: "STOCK", Quantity: dec("1e-50000000"), AvgBuyPrice: dec("1")}, "quantity"},
		{"huge exponent price", AssetDraft{Ticker: "AAPL", AssetType: "STOCK", Quantity: dec("1"), AvgBuyPrice: dec("1e40")}, "avgBuyPrice"},
		{"too many digits", AssetDraft{Ticker: "AAPL", AssetType: "STOCK", Quantity: dec("123456789012345678901234567890.123456789"), AvgBuyPrice: dec("1")}, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			p, err := r.CreatePortfolio("Main")
			require.NoError(t, err)
			before := r.Store().GetState()

			_, err = r.AddAsset(p.ID, tt.draft)
			require.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, before, r.Store().GetState(), "store must be unchanged")
		})
	}
}

func TestRegistry_AddAssetAcceptsFinePrecision(t *testing.T) {
	r := newTestRegistry()
	p, _ := r.CreatePortfolio("Main")

	draft := appleDraft()
	draft.Quantity = dec("0.000000000000000001")
	asset, err := r.AddAsset(p.ID, draft)
	require.NoError(t, err)
	assert.Equal(t, "0.000000000000000001", asset.Quantity.String())
}

func TestRegistry_UpdateAssetRejectsOutOfRange(t *testing.T) {
	r := newTestRegistry()
	p, _ := r.CreatePortfolio("Main")
	asset, err := r.AddAsset(p.ID, appleDraft())
	require.NoError(t, err)

	_, err = r.UpdateAsset(p.ID, asset.ID, AssetPatch{Quantity: decPtr("1e-50000000")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := r.ListAssets(p.ID)
	require.NoError(t, err)
	assert.True(t, asset.Quantity.Equal(got[0].Quantity))
}

func TestRegistry_AddAssetUnknownPortfolio(t *testing.T) {
	r := newTestRegistry()

	_, err := r.AddAsset("missing", appleDraft())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_UpdateAsset(t *testing.T) {
	r := newTestRegistry()
	p, _ := r.CreatePortfolio("Main")
	asset, err := r.AddAsset(p.ID, appleDraft())
	require.NoError(t, err)

	updated, err := r.UpdateAsset(p.ID, asset.ID, AssetPatch{
		Quantity:  decPtr("12.5"),
		Name:      strPtr("Apple"),
		AssetType: strPtr("other"),
	})
	require.NoError(t, err)

	assert.Equal(t, asset.ID, updated.ID)
	assert.Equal(t, "AAPL", updated.Ticker)
	assert.True(t, updated.Quantity.Equal(dec("12.5")))
	assert.True(t, updated.AvgBuyPrice.Equal(dec("150")), "absent fields are kept")
	assert.Equal(t, "Apple", updated.Name)
	assert.Equal(t, domain.AssetTypeOther, updated.AssetType)
}

func TestRegistry_UpdateAssetRevalidates(t *testing.T) {
	r := newTestRegistry()
	p, _ := r.CreatePortfolio("Main")
	asset, _ := r.AddAsset(p.ID, appleDraft())
	before := r.Store().GetState()

	_, err := r.UpdateAsset(p.ID, asset.ID, AssetPatch{Quantity: decPtr("0")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = r.UpdateAsset(p.ID, asset.ID, AssetPatch{AssetType: strPtr("BOND")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, before, r.Store().GetState())
}

func TestRegistry_UpdateAssetNotFound(t *testing.T) {
	r := newTestRegistry()
	p, _ := r.CreatePortfolio("Main")

	_, err := r.UpdateAsset(p.ID, "missing", AssetPatch{Quantity: decPtr("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.UpdateAsset("missing", "missing", AssetPatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_DeleteAsset(t *testing.T) {
	r := newTestRegistry()
	p, _ := r.CreatePortfolio("Main")
	a1, _ := r.AddAsset(p.ID, appleDraft())
	a2, _ := r.AddAsset(p.ID, AssetDraft{Ticker: "BTC-USD", AssetType: "COIN", Quantity: dec("0.5"), AvgBuyPrice: dec("30000")})
	a3, _ := r.AddAsset(p.ID, AssetDraft{Ticker: "TSLA", AssetType: "STOCK", Quantity: dec("3"), AvgBuyPrice: dec("200")})

	require.NoError(t, r.DeleteAsset(p.ID, a2.ID))

	assets, err := r.ListAssets(p.ID)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, a1.ID, assets[0].ID)
	assert.Equal(t, a3.ID, assets[1].ID)

	err = r.DeleteAsset(p.ID, a2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "deleting twice is surfaced")
}

func TestRegistry_RenameAndDeletePortfolio(t *testing.T) {
	r := newTestRegistry()
	p1, _ := r.CreatePortfolio("One")
	p2, _ := r.CreatePortfolio("Two")

	renamed, err := r.RenamePortfolio(p2.ID, "Second")
	require.NoError(t, err)
	assert.Equal(t, "Second", renamed.Name)

	_, err = r.RenamePortfolio(p2.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, r.SelectPortfolio(p2.ID))
	require.NoError(t, r.DeletePortfolio(p2.ID))
	assert.Equal(t, p1.ID, r.Store().GetState().SelectedPortfolioID)

	assert.ErrorIs(t, r.DeletePortfolio(p2.ID), domain.ErrNotFound)

	require.NoError(t, r.DeletePortfolio(p1.ID))
	assert.Empty(t, r.Store().GetState().SelectedPortfolioID)
	assert.Empty(t, r.ListPortfolios())
}

func TestRegistry_MutationsTouchRevision(t *testing.T) {
	r := newTestRegistry()
	p1, _ := r.CreatePortfolio("One")
	p2, _ := r.CreatePortfolio("Two")

	_, err := r.AddAsset(p1.ID, appleDraft())
	require.NoError(t, err)

	got1, _ := r.GetPortfolio(p1.ID)
	got2, _ := r.GetPortfolio(p2.ID)
	assert.Equal(t, uint64(3), got1.Revision)
	assert.Equal(t, uint64(2), got2.Revision)
}

func TestNormalizeTicker(t *testing.T) {
	for _, ok := range []string{"aapl", "005930.ks", "BTC-USD", "^GSPC", "KRW=X"} {
		_, err := NormalizeTicker(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "   ", "A B", "AAPL$", "ABCDEFGHIJKLMNOPQRSTUVWXYZ"} {
		_, err := NormalizeTicker(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}
