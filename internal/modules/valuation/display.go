package valuation

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// nonFractionalSuffixes marks markets whose prices are shown without decimals.
// Korean listings (.KS KOSPI, .KQ KOSDAQ) trade in whole won.
var nonFractionalSuffixes = map[string]string{
	".KS": "KRW",
	".KQ": "KRW",
}

const percentDecimals = 2

// DisplayCurrency returns the currency used to present ticker's amounts.
// The ticker suffix wins over the quote currency, and USD is the default.
func DisplayCurrency(ticker, quoteCurrency string) string {
	upper := strings.ToUpper(ticker)
	for suffix, cur := range nonFractionalSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return cur
		}
	}
	if quoteCurrency != "" {
		return strings.ToUpper(quoteCurrency)
	}
	return "USD"
}

func displayDecimals(cur money.Currency) int32 {
	return int32(cur.Fraction)
}

func roundAmount(v decimal.Decimal, cur money.Currency) decimal.Decimal {
	return v.Round(displayDecimals(cur))
}

// RoundPercent rounds a percentage for presentation
func RoundPercent(v decimal.Decimal) decimal.Decimal {
	return v.Round(percentDecimals)
}

// FormatAmount renders v with the currency's symbol, grapheme and fraction digits,
// e.g. "$1,750.00" or "₩70,000".
func FormatAmount(v decimal.Decimal, currency string) string {
	cur := currencyOf(currency)
	minor := roundAmount(v, cur).Shift(displayDecimals(cur))
	return cur.Formatter().Format(minor.IntPart())
}

// currencyOf never returns nil; unknown codes get go-money's default formatting
func currencyOf(code string) money.Currency {
	return *money.New(0, strings.ToUpper(code)).Currency()
}
