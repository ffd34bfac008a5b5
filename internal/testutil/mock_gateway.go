package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// MockGateway is an in-memory price gateway for service tests.
// Symbols without a configured quote or series behave like an unavailable upstream:
// GetCurrentQuote returns nil and GetHistoricalSeries returns an empty slice.
type MockGateway struct {
	mu sync.Mutex

	quotes map[string]model.Quote
	series map[string][]model.PricePoint

	// QuoteCalls and SeriesCalls count calls per symbol.
	QuoteCalls  map[string]int
	SeriesCalls map[string]int
}

// NewMockGateway creates a gateway with no prices configured.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		quotes:      map[string]model.Quote{},
		series:      map[string][]model.PricePoint{},
		QuoteCalls:  map[string]int{},
		SeriesCalls: map[string]int{},
	}
}

// WithQuote sets the current price of symbol.
func (m *MockGateway) WithQuote(symbol, price string) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = model.Quote{Symbol: symbol, CurrentPrice: Dec(price)}
	return m
}

// WithoutQuote makes symbol's current quote unavailable.
func (m *MockGateway) WithoutQuote(symbol string) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quotes, symbol)
	return m
}

// WithSeries sets the historical closes of symbol.
func (m *MockGateway) WithSeries(symbol string, series []model.PricePoint) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol] = series
	return m
}

// GetCurrentQuote returns the configured quote or nil.
func (m *MockGateway) GetCurrentQuote(_ context.Context, symbol string) *model.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QuoteCalls[symbol]++
	quote, ok := m.quotes[symbol]
	if !ok {
		return nil
	}
	return &quote
}

// GetHistoricalSeries returns the configured points within [start, end].
func (m *MockGateway) GetHistoricalSeries(_ context.Context, symbol string, start, end time.Time) []model.PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SeriesCalls[symbol]++
	points := []model.PricePoint{}
	for _, p := range m.series[symbol] {
		if p.Date.Before(model.Day(start)) || p.Date.After(model.Day(end)) {
			continue
		}
		points = append(points, p)
	}
	return points
}

// QuoteCallCount returns how often GetCurrentQuote was called for symbol.
func (m *MockGateway) QuoteCallCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QuoteCalls[symbol]
}
