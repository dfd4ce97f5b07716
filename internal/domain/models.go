// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType is the closed set of holding categories used for allocation grouping.
type AssetType string

const (
	// AssetTypeStock represents listed equities
	AssetTypeStock AssetType = "STOCK"
	// AssetTypeCoin represents crypto currencies with a floating price
	AssetTypeCoin AssetType = "COIN"
	// AssetTypeStablecoin represents pegged crypto currencies
	AssetTypeStablecoin AssetType = "STABLECOIN"
	// AssetTypeDeFi represents decentralized finance positions
	AssetTypeDeFi AssetType = "DEFI"
	// AssetTypeNFT represents non-fungible tokens
	AssetTypeNFT AssetType = "NFT"
	// AssetTypeOther represents anything not covered above
	AssetTypeOther AssetType = "OTHER"
)

// AssetTypes lists every asset type in declaration order.
// The order is used to break ties when sorting allocations.
var AssetTypes = []AssetType{
	AssetTypeStock,
	AssetTypeCoin,
	AssetTypeStablecoin,
	AssetTypeDeFi,
	AssetTypeNFT,
	AssetTypeOther,
}

// ParseAssetType converts user input into an AssetType.
// Input is trimmed and upper-cased; anything outside the enumeration is rejected.
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown asset type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a member of the enumeration
func (t AssetType) Valid() bool {
	return t.Order() >= 0
}

// Order returns the declaration index of t, or -1 if t is not a known type
func (t AssetType) Order() int {
	for i, known := range AssetTypes {
		if known == t {
			return i
		}
	}
	return -1
}

func (t AssetType) String() string {
	return string(t)
}

// Asset is a single recorded holding (lot) of a ticker within a portfolio.
type Asset struct {
	ID          string          `json:"id"`
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name"`
	AssetType   AssetType       `json:"assetType"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgBuyPrice decimal.Decimal `json:"avgBuyPrice"`
}

// CostBasis returns quantity * average buy price
func (a Asset) CostBasis() decimal.Decimal {
	return a.Quantity.Mul(a.AvgBuyPrice)
}

// Portfolio is a named, ordered collection of assets.
// Revision is the store version at which the portfolio last changed.
type Portfolio struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Assets    []Asset   `json:"assets"`
	CreatedAt time.Time `json:"createdAt"`
	Revision  uint64    `json:"revision"`
}

// Clone returns a deep copy of the portfolio so callers can never alias store state
func (p Portfolio) Clone() Portfolio {
	out := p
	out.Assets = make([]Asset, len(p.Assets))
	copy(out.Assets, p.Assets)
	return out
}

// AssetIndex returns the position of the asset with the given id
func (p Portfolio) AssetIndex(assetID string) (int, bool) {
	for i, a := range p.Assets {
		if a.ID == assetID {
			return i, true
		}
	}
	return -1, false
}

// Tickers returns the distinct tickers held, in first-seen order
func (p Portfolio) Tickers() []string {
	seen := make(map[string]bool, len(p.Assets))
	tickers := make([]string, 0, len(p.Assets))
	for _, a := range p.Assets {
		if seen[a.Ticker] {
			continue
		}
		seen[a.Ticker] = true
		tickers = append(tickers, a.Ticker)
	}
	return tickers
}

// Quote is a point-in-time market price supplied by a quote gateway.
type Quote struct {
	Ticker       string          `json:"ticker"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Currency     string          `json:"currency"`
	AsOf         time.Time       `json:"asOf"`
}

// QuoteResult is the outcome of resolving one ticker during a refresh cycle.
// Quote is nil when no price (live or last known) exists.
// Stale is set whenever the live fetch failed, even if a last known quote was reused.
type QuoteResult struct {
	Ticker string
	Quote  *Quote
	Stale  bool
	Err    error
}

// QuoteSet maps tickers to their resolution outcome
type QuoteSet map[string]QuoteResult

// PricePoint is one historical close
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}
