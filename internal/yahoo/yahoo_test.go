package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-04, 2024-03-05 (null close), 2024-03-06 at 14:30 UTC
const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "AAPL", "regularMarketPrice": 171.5, "chartPreviousClose": 170.25},
      "timestamp": [1709560800, 1709647200, 1709735400],
      "indicators": {"quote": [{"close": [170.1, null, 171.5], "open": [1, 2, 3]}]}
    }],
    "error": null
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*FinanceClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFinanceClient(WithBaseURL(srv.URL), WithRateLimit(100)), srv
}

func TestQueryYahooFiveDaySymbol(t *testing.T) {
	var gotPath, gotRange, gotUA string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartBody))
	})

	resp, err := client.QueryYahooFiveDaySymbol(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "5d", gotRange)
	assert.NotEmpty(t, gotUA)

	quote, err := ParseCurrentQuote(resp)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 171.5, quote.Price)
	assert.Equal(t, 170.25, quote.PreviousClose)
}

func TestQueryYahooSymbolByDateRange(t *testing.T) {
	var period1, period2 string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		period1 = r.URL.Query().Get("period1")
		period2 = r.URL.Query().Get("period2")
		w.Write([]byte(chartBody))
	})

	start := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)

	resp, err := client.QueryYahooSymbolByDateRange(context.Background(), "AAPL", start, end)
	require.NoError(t, err)

	assert.Equal(t, "1709424000", period1, "window opens at midnight UTC the day before start")
	assert.Equal(t, "1709769600", period2, "end day is inclusive")

	chart, err := ParseChart(resp)
	require.NoError(t, err)
	require.Len(t, chart.Indicators, 2, "null closes are skipped")
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), chart.Indicators[0].Date)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), chart.Indicators[1].Date)
	assert.Equal(t, 171.5, chart.Indicators[1].PriceClose)
}

// TestParseChart_ExchangeTradingDay tests dating bars by the exchange's own calendar.
//
// WHY: The ASX opens at 10:00 Sydney time, which is 23:00 UTC the day before during
// daylight saving. Dating bars by their UTC day would shift every close one day back.
func TestParseChart_ExchangeTradingDay(t *testing.T) {
	// 2024-03-04 23:00 UTC and 2024-03-05 23:00 UTC are the opens of 5 and 6 March in Sydney.
	response := func(meta Meta) Response {
		one, two := 7.5, 7.6
		return Response{Chart: Chart{Result: []Result{{
			Meta:       meta,
			Timestamp:  []int64{1709593200, 1709679600},
			Indicators: IndicatorsContainer{Quote: []Quote{{Close: []*float64{&one, &two}}}},
		}}}}
	}

	tests := []struct {
		name string
		meta Meta
	}{
		{"named time zone", Meta{Symbol: "BHP.AX", ExchangeTimezoneName: "Australia/Sydney", GMTOffset: 39600}},
		{"fixed offset fallback", Meta{Symbol: "BHP.AX", ExchangeTimezoneName: "Not/AZone", GMTOffset: 39600}},
		{"offset only", Meta{Symbol: "BHP.AX", GMTOffset: 39600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chart, err := ParseChart(response(tt.meta))

			require.NoError(t, err)
			require.Len(t, chart.Indicators, 2)
			assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), chart.Indicators[0].Date)
			assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), chart.Indicators[1].Date)
		})
	}
}

// TestQueryYahoo_Failures verifies every upstream failure mode is returned as an error.
func TestQueryYahoo_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(chartBody))
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart": [`))
		}},
		{"chart error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		}},
		{"empty result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)

			_, err := client.QueryYahooFiveDaySymbol(context.Background(), "ZZZZ")
			assert.Error(t, err)
		})
	}
}

func TestQueryYahoo_ContextCanceled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.QueryYahooFiveDaySymbol(ctx, "AAPL")
	assert.Error(t, err)
}

func TestParseCurrentQuote_MissingPrice(t *testing.T) {
	resp := Response{Chart: Chart{Result: []Result{{Meta: Meta{Symbol: "AAPL"}}}}}

	_, err := ParseCurrentQuote(resp)
	assert.Error(t, err)

	_, err = ParseCurrentQuote(Response{})
	assert.Error(t, err)
}

func TestParseChart_Invalid(t *testing.T) {
	price := 1.0

	tests := []struct {
		name string
		resp Response
	}{
		{"no results", Response{}},
		{"no timestamps", Response{Chart: Chart{Result: []Result{{}}}}},
		{"no closes", Response{Chart: Chart{Result: []Result{{Timestamp: []int64{1}}}}}},
		{"mismatched", Response{Chart: Chart{Result: []Result{{
			Timestamp:  []int64{1, 2},
			Indicators: IndicatorsContainer{Quote: []Quote{{Close: []*float64{&price}}}},
		}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChart(tt.resp)
			assert.Error(t, err)
		})
	}
}
