package domain

import "context"

// QuoteGateway supplies the current price of a ticker.
// Implementations may be live or cached and own any retry policy;
// callers never retry.
type QuoteGateway interface {
	FetchQuote(ctx context.Context, ticker string) (Quote, error)
}

// HistoryGateway supplies daily closes for a ticker covering roughly the last days.
// Points are returned oldest first.
type HistoryGateway interface {
	FetchHistory(ctx context.Context, ticker string, days int) ([]PricePoint, error)
}
