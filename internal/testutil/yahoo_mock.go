package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ndewijer/portfolio-valuation/internal/yahoo"
)

// MockYahooClient is a mock implementation of yahoo.Client for testing.
// It returns predefined responses per symbol instead of making actual API calls.
// Symbols without a configured response get a Yahoo "No data found" chart error.
type MockYahooClient struct {
	mu sync.Mutex

	// Quotes holds the five-day responses used for current quotes.
	Quotes map[string]yahoo.Response
	// History holds the date range responses used for daily closes.
	History map[string]yahoo.Response
	// MockError, when set, is returned from every query.
	MockError error
	// QueryCount tracks how many times a query method was called
	QueryCount int
}

// NewMockYahooClient creates a new mock Yahoo client with no configured symbols.
func NewMockYahooClient() *MockYahooClient {
	return &MockYahooClient{
		Quotes:  map[string]yahoo.Response{},
		History: map[string]yahoo.Response{},
	}
}

// QueryYahooFiveDaySymbol returns the configured quote response for symbol.
func (m *MockYahooClient) QueryYahooFiveDaySymbol(_ context.Context, symbol string) (yahoo.Response, error) {
	return m.lookup(m.Quotes, symbol)
}

// QueryYahooSymbolByDateRange returns the configured history response for symbol.
// The date range is not applied; callers clip the parsed series themselves.
func (m *MockYahooClient) QueryYahooSymbolByDateRange(_ context.Context, symbol string, _, _ time.Time) (yahoo.Response, error) {
	return m.lookup(m.History, symbol)
}

func (m *MockYahooClient) lookup(responses map[string]yahoo.Response, symbol string) (yahoo.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryCount++
	if m.MockError != nil {
		return yahoo.Response{}, m.MockError
	}
	if resp, ok := responses[symbol]; ok {
		return resp, nil
	}
	return CreateMockYahooErrorResponse("No data found, symbol may be delisted"), nil
}

// WithError configures the mock to return the specified error.
func (m *MockYahooClient) WithError(err error) *MockYahooClient {
	m.MockError = err
	return m
}

// WithQuote configures the current price of symbol.
func (m *MockYahooClient) WithQuote(symbol string, price float64) *MockYahooClient {
	resp := CreateMockYahooResponse(symbol, time.Now().UTC().AddDate(0, 0, -4), price, price, price, price, price)
	m.Quotes[symbol] = resp
	return m
}

// WithHistory configures consecutive daily closes of symbol starting at start.
func (m *MockYahooClient) WithHistory(symbol string, start time.Time, closes ...float64) *MockYahooClient {
	m.History[symbol] = CreateMockYahooResponse(symbol, start, closes...)
	return m
}

// CreateMockYahooResponse creates a mock Yahoo Finance chart response with one close per
// calendar day starting at start. The live market price is the last close.
func CreateMockYahooResponse(symbol string, start time.Time, closes ...float64) yahoo.Response {
	days := len(closes)
	timestamps := make([]int64, days)
	opens := make([]*float64, days)
	highs := make([]*float64, days)
	lows := make([]*float64, days)
	closePtrs := make([]*float64, days)
	volumes := make([]*int64, days)

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for i := range closes {
		// Yahoo stamps daily bars at the exchange open, not at midnight.
		timestamps[i] = day.AddDate(0, 0, i).Add(14*time.Hour + 30*time.Minute).Unix()

		closePrice := closes[i]
		open := closePrice - 0.25
		high := closePrice + 1.0
		low := closePrice - 0.5
		volume := int64(1000000 + i*10000)

		opens[i] = &open
		highs[i] = &high
		lows[i] = &low
		closePtrs[i] = &closePrice
		volumes[i] = &volume
	}

	meta := yahoo.Meta{
		Symbol:           symbol,
		Currency:         "USD",
		ExchangeName:     "NMS",
		FullExchangeName: "NASDAQ",
		LongName:         fmt.Sprintf("%s Inc.", symbol),
		Shortname:        symbol,

		ExchangeTimezoneName: "America/New_York",
		GMTOffset:            -18000,
	}
	if days > 0 {
		last := closes[days-1]
		meta.RegularMarketPrice = &last
	}
	if days > 1 {
		prev := closes[days-2]
		meta.ChartPreviousClose = &prev
	}

	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{
				{
					Meta:      meta,
					Timestamp: timestamps,
					Indicators: yahoo.IndicatorsContainer{
						Quote: []yahoo.Quote{
							{
								Open:   opens,
								High:   highs,
								Low:    lows,
								Close:  closePtrs,
								Volume: volumes,
							},
						},
					},
				},
			},
			Error: nil,
		},
	}
}

// CreateMockYahooErrorResponse creates a mock Yahoo response with an error.
// Useful for testing error handling scenarios.
func CreateMockYahooErrorResponse(errorMsg string) yahoo.Response {
	return yahoo.Response{
		Chart: yahoo.Chart{
			Result: []yahoo.Result{},
			Error: &yahoo.ChartError{
				Code:        "Not Found",
				Description: errorMsg,
			},
		},
	}
}
