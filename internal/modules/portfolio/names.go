package portfolio

// knownNames maps well-known tickers to display names.
// Assets without an explicit name fall back to this table, then to the ticker itself.
var knownNames = map[string]string{
	"AAPL":      "Apple Inc.",
	"TSLA":      "Tesla, Inc.",
	"BTC-USD":   "Bitcoin",
	"ETH-USD":   "Ethereum",
	"USDT-USD":  "Tether",
	"005930.KS": "Samsung Electronics",
	"000660.KS": "SK Hynix",
	"035420.KS": "NAVER",
}

// DisplayName resolves the label shown for ticker
func DisplayName(ticker, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if name, ok := knownNames[ticker]; ok {
		return name
	}
	return ticker
}
