// Package yahoo provides a client for the Yahoo Finance chart API, used for live quotes
// and as a fallback source of daily closes.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client is the subset of the Yahoo API the pricing layer depends on.
type Client interface {
	QueryYahooFiveDaySymbol(ctx context.Context, symbol string) (Response, error)
	QueryYahooSymbolByDateRange(ctx context.Context, symbol string, startDate, endDate time.Time) (Response, error)
}

// FinanceClient provides methods for fetching financial data from Yahoo Finance API.
// Requests are rate limited client-side.
type FinanceClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// ClientOption configures the client
type ClientOption func(*FinanceClient)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *FinanceClient) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *FinanceClient) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit in requests per second
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *FinanceClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *FinanceClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewFinanceClient creates a new Yahoo Finance client.
func NewFinanceClient(opts ...ClientOption) *FinanceClient {
	c := &FinanceClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     logging.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ParseChart converts a raw Yahoo Finance API response into a structured price chart.
// Days whose close is null (halts, partial days) are skipped. Each bar is dated by the
// exchange-local calendar day of its timestamp, so markets that open before midnight UTC
// keep their own trading date.
//
// Returns an error if:
//   - The response has no results
//   - Timestamp or close data is missing
//   - Timestamp and close arrays have mismatched lengths
func ParseChart(yahooResult Response) (PriceChart, error) {
	if len(yahooResult.Chart.Result) == 0 {
		return PriceChart{}, fmt.Errorf("no results returned")
	}
	result := yahooResult.Chart.Result[0]

	if len(result.Timestamp) == 0 {
		return PriceChart{}, fmt.Errorf("no price data returned")
	}
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.Quote[0].Close) == 0 {
		return PriceChart{}, fmt.Errorf("no close prices returned")
	}

	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return PriceChart{}, fmt.Errorf("mismatched data lengths")
	}

	loc := exchangeLocation(result.Meta)
	indicators := make([]Indicators, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		indicators = append(indicators, Indicators{
			Date:       tradingDay(ts, loc),
			PriceClose: *closes[i],
		})
	}

	return PriceChart{
		Symbol:           result.Meta.Symbol,
		Currency:         result.Meta.Currency,
		ExchangeName:     result.Meta.ExchangeName,
		FullExchangeName: result.Meta.FullExchangeName,
		LongName:         result.Meta.LongName,
		Shortname:        result.Meta.Shortname,
		Indicators:       indicators,
	}, nil
}

// ParseCurrentQuote extracts the live market price from a chart response.
// The previous close is taken from chartPreviousClose, falling back to previousClose.
//
// Returns an error if the response has no results or no regularMarketPrice.
func ParseCurrentQuote(yahooResult Response) (CurrentQuote, error) {
	if len(yahooResult.Chart.Result) == 0 {
		return CurrentQuote{}, fmt.Errorf("no results returned")
	}
	meta := yahooResult.Chart.Result[0].Meta

	if meta.RegularMarketPrice == nil {
		return CurrentQuote{}, fmt.Errorf("no current price returned for %s", meta.Symbol)
	}

	quote := CurrentQuote{
		Symbol: meta.Symbol,
		Price:  *meta.RegularMarketPrice,
	}
	switch {
	case meta.ChartPreviousClose != nil:
		quote.PreviousClose = *meta.ChartPreviousClose
	case meta.PreviousClose != nil:
		quote.PreviousClose = *meta.PreviousClose
	}

	return quote, nil
}

// exchangeLocation returns the exchange time zone named in meta. When the name is
// missing or unknown to the tz database, the fixed GMT offset is used instead.
func exchangeLocation(meta Meta) *time.Location {
	if meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(meta.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone(meta.ExchangeTimezoneName, meta.GMTOffset)
}

// tradingDay returns the calendar day of ts in loc as midnight UTC.
func tradingDay(ts int64, loc *time.Location) time.Time {
	local := time.Unix(ts, 0).In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// QueryYahooFiveDaySymbol fetches the last 5 days of daily price data for a symbol.
// The response meta carries the current market price.
func (c *FinanceClient) QueryYahooFiveDaySymbol(ctx context.Context, symbol string) (Response, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "5d")

	result, err := c.queryYahoo(ctx, symbol, params)
	if err != nil {
		return Response{}, err
	}
	if len(result.Chart.Result) == 0 {
		return Response{}, fmt.Errorf("no results returned for symbol %s", symbol)
	}

	return result, nil
}

// QueryYahooSymbolByDateRange fetches daily price data for a symbol within a date range.
// endDate is inclusive: the request window is extended to the end of that day. The window
// also starts one day early because bars of exchanges east of UTC are stamped on the
// previous UTC day; callers clip the parsed series to the dates they asked for.
func (c *FinanceClient) QueryYahooSymbolByDateRange(ctx context.Context, symbol string, startDate, endDate time.Time) (Response, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", fmt.Sprintf("%d", model.Day(startDate).AddDate(0, 0, -1).Unix()))
	params.Set("period2", fmt.Sprintf("%d", model.Day(endDate).AddDate(0, 0, 1).Unix()))

	result, err := c.queryYahoo(ctx, symbol, params)
	if err != nil {
		return Response{}, err
	}
	if len(result.Chart.Result) == 0 {
		return Response{}, fmt.Errorf("no results returned for symbol %s", symbol)
	}

	return result, nil
}

// queryYahoo executes a rate-limited chart request and decodes the response.
// Any non-2xx status or a chart error object is returned as an error.
func (c *FinanceClient) queryYahoo(ctx context.Context, symbol string, params url.Values) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("symbol", symbol).Str("query", params.Encode()).Msg("yahoo chart request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, symbol)
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Chart.Error != nil {
		return response, fmt.Errorf("yahoo error: %s: %s", response.Chart.Error.Code, response.Chart.Error.Description)
	}

	return response, nil
}
