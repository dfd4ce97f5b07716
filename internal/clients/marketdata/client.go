// Package marketdata is the HTTP client for the market data service.
// It implements both the quote and history gateways. Nothing here retries.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Client talks to the market data service
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

// NewClient creates a market data client for baseURL
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
		log:     log.With().Str("client", "market-data").Logger(),
	}
}

type priceResponse struct {
	Ticker      string          `json:"ticker"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	LastUpdated string          `json:"last_updated"`
}

type chartResponse struct {
	Ticker  string `json:"ticker"`
	History []struct {
		Date  string          `json:"date"`
		Price decimal.Decimal `json:"price"`
	} `json:"history"`
}

// FetchQuote implements domain.QuoteGateway
func (c *Client) FetchQuote(ctx context.Context, ticker string) (domain.Quote, error) {
	var resp priceResponse
	if err := c.get(ctx, ticker, "/api/market/price", url.Values{"ticker": {ticker}}, &resp); err != nil {
		return domain.Quote{}, err
	}

	asOf, err := time.Parse(time.RFC3339, resp.LastUpdated)
	if err != nil {
		asOf = c.now().UTC()
	}

	currency := resp.Currency
	if currency == "" {
		currency = "USD"
	}

	c.log.Debug().
		Str("ticker", ticker).
		Str("price", resp.Price.String()).
		Str("currency", currency).
		Msg("Fetched price")

	return domain.Quote{
		Ticker:       ticker,
		CurrentPrice: resp.Price,
		Currency:     currency,
		AsOf:         asOf,
	}, nil
}

// FetchHistory implements domain.HistoryGateway. The service only knows named
// periods, so the smallest period covering days is requested and trimmed.
func (c *Client) FetchHistory(ctx context.Context, ticker string, days int) ([]domain.PricePoint, error) {
	var resp chartResponse
	query := url.Values{"ticker": {ticker}, "period": {Period(days)}}
	if err := c.get(ctx, ticker, "/api/market/chart", query, &resp); err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(resp.History))
	for _, h := range resp.History {
		date, err := time.Parse(dateLayout, h.Date)
		if err != nil {
			c.log.Warn().Str("ticker", ticker).Str("date", h.Date).Msg("Skipping unparseable chart point")
			continue
		}
		points = append(points, domain.PricePoint{Date: date, Price: h.Price})
	}

	if len(points) == 0 {
		return nil, domain.NewQuoteUnavailableError(ticker, fmt.Errorf("empty history"))
	}

	return trim(points, days), nil
}

func (c *Client) get(ctx context.Context, ticker, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewQuoteUnavailableError(ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewQuoteUnavailableError(ticker,
			fmt.Errorf("market data service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewQuoteUnavailableError(ticker, fmt.Errorf("failed to parse response: %w", err))
	}

	return nil
}

// Period maps a window in days to the service's named period
func Period(days int) string {
	switch {
	case days <= 1:
		return "1d"
	case days <= 5:
		return "5d"
	case days <= 31:
		return "1mo"
	case days <= 92:
		return "3mo"
	case days <= 183:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 731:
		return "2y"
	case days <= 1827:
		return "5y"
	case days <= 3653:
		return "10y"
	default:
		return "max"
	}
}

// trim keeps the points within days of the most recent one
func trim(points []domain.PricePoint, days int) []domain.PricePoint {
	if days <= 0 {
		return points
	}
	cutoff := points[len(points)-1].Date.AddDate(0, 0, -days)
	for i, p := range points {
		if p.Date.After(cutoff) {
			return points[i:]
		}
	}
	return points
}
