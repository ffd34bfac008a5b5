package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation/internal/api/handlers"
	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/testutil"
)

func addHoldingRequest(t *testing.T, portfolioID, userID string, body interface{}) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/portfolio/"+portfolioID+"/holdings", body)
	req = testutil.WithURLParams(req, map[string]string{"uuid": portfolioID})
	return testutil.AsUser(req, userID)
}

// TestHoldingHandler_AddHolding tests the POST /api/portfolio/{uuid}/holdings endpoint.
//
// WHY: This is the entry point of the valuation engine. The status code is the only way
// a client tells a retryable provider outage from bad input or missing data, and a failed
// purchase must leave no holding behind.
func TestHoldingHandler_AddHolding(t *testing.T) {
	t.Run("purchase dated today is valued live", func(t *testing.T) {
		// Setup
		gw := testutil.NewMockGateway().WithQuote("AAPL", "151")
		svcs, db := setupServices(t, gw)
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]string{
			"symbol":        "aapl",
			"shares":        "10",
			"boughtAtPrice": "150",
		})
		w := httptest.NewRecorder()

		// Execute
		handler.AddHolding(w, req)

		// Assert
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		result := decodeJSON[service.AddHoldingResult](t, w)
		assert.Equal(t, service.ModeLive, result.Mode)
		assert.Equal(t, "AAPL", result.Holding.Symbol)
		require.NotNil(t, result.Snapshot)
		assert.Equal(t, "1500", result.Snapshot.TotalValue.String())
		assert.Nil(t, result.Backfill)
	})

	t.Run("earlier purchase backfills to today", func(t *testing.T) {
		// Setup
		gw := testutil.NewMockGateway().
			WithQuote("GOOG", "140").
			WithSeries("GOOG", testutil.DailySeries(testutil.Date(2024, 3, 6),
				"130", "131", "132", "133", "134", "135", "136", "137", "138"))
		svcs, db := setupServices(t, gw)
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]interface{}{
			"symbol":        "GOOG",
			"shares":        10,
			"boughtAtPrice": 129.5,
			"boughtAtDate":  "2024-03-06",
		})
		w := httptest.NewRecorder()

		// Execute
		handler.AddHolding(w, req)

		// Assert
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		result := decodeJSON[service.AddHoldingResult](t, w)
		assert.Equal(t, service.ModeBackfill, result.Mode)
		require.NotNil(t, result.Backfill)
		assert.Equal(t, 10, result.Backfill.DatesWritten)
		assert.Equal(t, "2024-03-06", model.FormatDate(result.Backfill.FirstDate))
		assert.Equal(t, "2024-03-15", model.FormatDate(result.Backfill.LastDate))
	})

	t.Run("returns 503 when the quote is unavailable and records nothing", func(t *testing.T) {
		// Setup
		gw := testutil.NewMockGateway().WithoutQuote("AAPL")
		svcs, db := setupServices(t, gw)
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]string{
			"symbol": "AAPL", "shares": "10", "boughtAtPrice": "150",
		})
		w := httptest.NewRecorder()

		// Execute
		handler.AddHolding(w, req)

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, apperrors.ErrUpstreamUnavailable.Error(), decodeError(t, w).Error)
		testutil.AssertRowCount(t, db, "holding", 0)
		testutil.AssertRowCount(t, db, "portfolio_snapshot", 0)
	})

	t.Run("returns 422 when the symbol has no history", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("ZZZZ", "10")
		svcs, db := setupServices(t, gw)
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]string{
			"symbol": "ZZZZ", "shares": "1", "boughtAtPrice": "10", "boughtAtDate": "2024-03-01",
		})
		w := httptest.NewRecorder()

		handler.AddHolding(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		testutil.AssertRowCount(t, db, "portfolio_snapshot", 0)
	})

	t.Run("returns 400 for a future purchase date", func(t *testing.T) {
		svcs, db := setupServices(t, testutil.NewMockGateway())
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]string{
			"symbol": "AAPL", "shares": "1", "boughtAtPrice": "10", "boughtAtDate": "2024-03-16",
		})
		w := httptest.NewRecorder()

		handler.AddHolding(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrInvalidDate.Error(), decodeError(t, w).Error)
	})

	t.Run("returns 400 with field errors", func(t *testing.T) {
		svcs, db := setupServices(t, testutil.NewMockGateway())
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]string{
			"symbol": "", "shares": "0", "boughtAtPrice": "10",
		})
		w := httptest.NewRecorder()

		handler.AddHolding(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		details, ok := decodeError(t, w).Details.(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, details, "symbol")
		assert.Contains(t, details, "shares")
	})

	t.Run("returns 404 for another user's portfolio", func(t *testing.T) {
		gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
		svcs, db := setupServices(t, gw)
		portfolio := testutil.NewPortfolio().Build(t, db)
		handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

		req := addHoldingRequest(t, portfolio.ID, "intruder", map[string]string{
			"symbol": "AAPL", "shares": "1", "boughtAtPrice": "150",
		})
		w := httptest.NewRecorder()

		handler.AddHolding(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 0, gw.QuoteCallCount("AAPL"))
	})
}

// TestHoldingHandler_Holdings tests the GET /api/portfolio/{uuid}/holdings endpoint.
func TestHoldingHandler_Holdings(t *testing.T) {
	gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
	svcs, db := setupServices(t, gw)
	portfolio := testutil.NewPortfolio().Build(t, db)
	handler := handlers.NewHoldingHandler(svcs.Holdings, svcs.Valuation)

	w := httptest.NewRecorder()
	handler.AddHolding(w, addHoldingRequest(t, portfolio.ID, testutil.DefaultUserID, map[string]string{
		"symbol": "AAPL", "shares": "2", "boughtAtPrice": "150",
	}))
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("lists recorded holdings", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio/"+portfolio.ID+"/holdings", map[string]string{"uuid": portfolio.ID})
		req = testutil.AsUser(req, testutil.DefaultUserID)
		w := httptest.NewRecorder()

		handler.Holdings(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		holdings := decodeJSON[[]model.Holding](t, w)
		require.Len(t, holdings, 1)
		assert.Equal(t, "AAPL", holdings[0].Symbol)
		assert.Equal(t, "2", holdings[0].Shares.String())
	})

	t.Run("returns 404 for another user", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/portfolio/"+portfolio.ID+"/holdings", map[string]string{"uuid": portfolio.ID})
		req = testutil.AsUser(req, "intruder")
		w := httptest.NewRecorder()

		handler.Holdings(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
