// Package pricing puts the live-quote and historical-close providers behind one
// fail-soft interface. Gateway methods never return errors: provider failures are
// logged and surface as a nil quote or an empty series, and callers decide whether
// that is fatal for their operation.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// DefaultTimeout bounds every single provider call.
const DefaultTimeout = 5 * time.Second

// Gateway fetches prices with a per-call timeout. It does not retry.
type Gateway struct {
	quotes  QuoteProvider
	history HistoryProvider
	timeout time.Duration
	logger  *logging.Logger
}

// GatewayOption configures the gateway
type GatewayOption func(*Gateway)

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a gateway over a quote provider and a history provider.
func NewGateway(quotes QuoteProvider, history HistoryProvider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		quotes:  quotes,
		history: history,
		timeout: DefaultTimeout,
		logger:  logging.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// GetCurrentQuote returns the current quote for symbol, or nil when the provider fails,
// times out, or reports a missing or non-positive price.
func (g *Gateway) GetCurrentQuote(ctx context.Context, symbol string) *model.Quote {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	quote, err := g.quotes.Quote(ctx, symbol)
	if err != nil {
		g.logger.Warn().Err(err).Str("symbol", symbol).Msg("current quote unavailable")
		return nil
	}

	if !quote.CurrentPrice.IsPositive() {
		g.logger.Warn().
			Str("symbol", symbol).
			Str("price", quote.CurrentPrice.String()).
			Msg("current quote has no usable price")
		return nil
	}

	quote.Symbol = symbol
	return &quote
}

// GetCurrentPrice returns only the current price of symbol, or nil when unavailable.
func (g *Gateway) GetCurrentPrice(ctx context.Context, symbol string) *decimal.Decimal {
	quote := g.GetCurrentQuote(ctx, symbol)
	if quote == nil {
		return nil
	}
	price := quote.CurrentPrice
	return &price
}

// GetHistoricalSeries returns daily closes for symbol between start and end (UTC days,
// inclusive), ascending by date with one point per day. Points outside the window or
// with non-positive prices are dropped; when a provider repeats a day the later point wins.
// Any failure yields an empty, non-nil slice.
func (g *Gateway) GetHistoricalSeries(ctx context.Context, symbol string, start, end time.Time) []model.PricePoint {
	start, end = model.Day(start), model.Day(end)
	if start.After(end) {
		return []model.PricePoint{}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.history.DailyCloses(ctx, symbol, start, end)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("start", model.FormatDate(start)).
			Str("end", model.FormatDate(end)).
			Msg("historical series unavailable")
		return []model.PricePoint{}
	}

	return model.ClipSeries(raw, start, end)
}
