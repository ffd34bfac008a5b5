package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/eodhd"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/yahoo"
)

// QuoteProvider supplies the current quote of a symbol.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (model.Quote, error)
}

// HistoryProvider supplies daily closes of a symbol between two days, inclusive.
// Implementations may return points in any order.
type HistoryProvider interface {
	DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]model.PricePoint, error)
}

// YahooQuoteProvider reads current quotes from the Yahoo chart endpoint.
type YahooQuoteProvider struct {
	client yahoo.Client
}

// NewYahooQuoteProvider creates a quote provider backed by the Yahoo client.
func NewYahooQuoteProvider(client yahoo.Client) *YahooQuoteProvider {
	return &YahooQuoteProvider{client: client}
}

// Quote returns the regular market price and previous close of symbol.
func (p *YahooQuoteProvider) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	resp, err := p.client.QueryYahooFiveDaySymbol(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}

	current, err := yahoo.ParseCurrentQuote(resp)
	if err != nil {
		return model.Quote{}, err
	}

	return model.Quote{
		Symbol:        symbol,
		CurrentPrice:  decimal.NewFromFloat(current.Price),
		PreviousClose: decimal.NewFromFloat(current.PreviousClose),
	}, nil
}

// YahooHistoryProvider reads daily closes from the Yahoo chart endpoint.
type YahooHistoryProvider struct {
	client yahoo.Client
}

// NewYahooHistoryProvider creates a history provider backed by the Yahoo client.
func NewYahooHistoryProvider(client yahoo.Client) *YahooHistoryProvider {
	return &YahooHistoryProvider{client: client}
}

// DailyCloses returns the closes Yahoo reports for the window.
func (p *YahooHistoryProvider) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]model.PricePoint, error) {
	resp, err := p.client.QueryYahooSymbolByDateRange(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	chart, err := yahoo.ParseChart(resp)
	if err != nil {
		return nil, err
	}

	points := make([]model.PricePoint, 0, len(chart.Indicators))
	for _, ind := range chart.Indicators {
		points = append(points, model.PricePoint{
			Date:  ind.Date,
			Price: decimal.NewFromFloat(ind.PriceClose),
		})
	}
	return points, nil
}

// EODHDHistoryProvider reads daily closes from EODHD.
type EODHDHistoryProvider struct {
	client   *eodhd.Client
	exchange string
}

// NewEODHDHistoryProvider creates a history provider backed by EODHD. Symbols without an
// exchange suffix are qualified with exchange (for example "AAPL" becomes "AAPL.US").
func NewEODHDHistoryProvider(client *eodhd.Client, exchange string) *EODHDHistoryProvider {
	return &EODHDHistoryProvider{client: client, exchange: exchange}
}

// DailyCloses returns the unadjusted closes EODHD reports for the window.
func (p *EODHDHistoryProvider) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]model.PricePoint, error) {
	bars, err := p.client.GetEOD(ctx, p.ticker(symbol), start, end)
	if err != nil {
		return nil, fmt.Errorf("eodhd history for %s: %w", symbol, err)
	}

	points := make([]model.PricePoint, 0, len(bars))
	for _, bar := range bars {
		if bar.Close == nil {
			continue
		}
		points = append(points, model.PricePoint{
			Date:  model.Day(bar.Date),
			Price: decimal.NewFromFloat(*bar.Close),
		})
	}
	return points, nil
}

func (p *EODHDHistoryProvider) ticker(symbol string) string {
	if p.exchange == "" || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + p.exchange
}
