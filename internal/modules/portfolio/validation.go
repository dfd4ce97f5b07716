package portfolio

import (
	"regexp"
	"strings"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// tickerPattern is the accepted symbol grammar after upper-casing.
// '^' and '=' are allowed for index and FX symbols (^GSPC, KRW=X).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]+$`)

const (
	maxTickerLength = 20
	maxNameLength   = 100

	// bounds for quantities and prices
	minExponent = -18
	maxExponent = 18
	maxDigits   = 38
)

// NormalizeTicker trims and upper-cases a ticker and checks it against the symbol grammar
func NormalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		return "", domain.NewValidationError("ticker", "must not be empty")
	}
	if len(ticker) > maxTickerLength {
		return "", domain.NewValidationError("ticker", "must be at most 20 characters")
	}
	if !tickerPattern.MatchString(ticker) {
		return "", domain.NewValidationError("ticker", "contains invalid characters")
	}
	return ticker, nil
}

func validatePortfolioName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", domain.NewValidationError("name", "must not be empty")
	}
	if len(name) > maxNameLength {
		return "", domain.NewValidationError("name", "must be at most 100 characters")
	}
	return name, nil
}

func validateAssetType(raw string) (domain.AssetType, error) {
	t, err := domain.ParseAssetType(raw)
	if err != nil {
		return "", domain.NewValidationError("assetType", "must be one of STOCK, COIN, STABLECOIN, DEFI, NFT, OTHER")
	}
	return t, nil
}

func validatePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return domain.NewValidationError(field, "must be greater than 0")
	}
	// Exponent and digit count bound the length of every String() of v
	if v.Exponent() < minExponent || v.Exponent() > maxExponent || v.NumDigits() > maxDigits {
		return domain.NewValidationError(field, "is out of range")
	}
	return nil
}

func validateDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) > maxNameLength {
		return "", domain.NewValidationError("name", "must be at most 100 characters")
	}
	return name, nil
}

// validateAsset checks every structural invariant of a fully built asset
func validateAsset(a domain.Asset) error {
	if _, err := NormalizeTicker(a.Ticker); err != nil {
		return err
	}
	if !a.AssetType.Valid() {
		return domain.NewValidationError("assetType", "must be one of STOCK, COIN, STABLECOIN, DEFI, NFT, OTHER")
	}
	if err := validatePositive("quantity", a.Quantity); err != nil {
		return err
	}
	return validatePositive("avgBuyPrice", a.AvgBuyPrice)
}
