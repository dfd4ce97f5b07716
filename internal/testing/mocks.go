package testing

import (
	"context"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockQuoteGateway is a testify mock of domain.QuoteGateway
type MockQuoteGateway struct {
	mock.Mock
}

func (m *MockQuoteGateway) FetchQuote(ctx context.Context, ticker string) (domain.Quote, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(domain.Quote), args.Error(1)
}

// MockHistoryGateway is a testify mock of domain.HistoryGateway
type MockHistoryGateway struct {
	mock.Mock
}

func (m *MockHistoryGateway) FetchHistory(ctx context.Context, ticker string, days int) ([]domain.PricePoint, error) {
	args := m.Called(ctx, ticker, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PricePoint), args.Error(1)
}
