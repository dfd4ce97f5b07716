package di

import (
	"fmt"
	"strings"

	"github.com/aristath/stockfolio/internal/clients/marketdata"
	"github.com/aristath/stockfolio/internal/clients/static"
	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// NewQuoteProviders builds the quote and history gateways named by the config.
// The history gateway is nil for providers without price history.
func NewQuoteProviders(cfg *config.Config, log zerolog.Logger) (domain.QuoteGateway, domain.HistoryGateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.QuoteProvider)) {
	case config.ProviderHTTP:
		client := marketdata.NewClient(cfg.MarketDataURL, cfg.QuoteTimeout, log)
		return client, client, nil
	case config.ProviderStatic:
		gateway, err := static.ParseTable(cfg.StaticQuotes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse STATIC_QUOTES: %w", err)
		}
		return gateway, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown quote provider %q", cfg.QuoteProvider)
	}
}
