package handlers_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/testutil"
)

// now is a Friday afternoon; "today" is 2024-03-15.
var now = time.Date(2024, 3, 15, 15, 30, 0, 0, time.UTC)

func setupServices(t *testing.T, gw *testutil.MockGateway, opts ...service.Option) (*testutil.Services, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	opts = append([]service.Option{service.WithClock(testutil.FixedClock(now))}, opts...)
	return testutil.NewTestServices(t, db, gw, opts...), db
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), "body: %s", w.Body.String())
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	return decodeJSON[response.ErrorResponse](t, w)
}

// seedSnapshot writes a single-symbol snapshot for date through the store.
func seedSnapshot(t *testing.T, svcs *testutil.Services, portfolioID, date, symbol, price, shares string) {
	t.Helper()
	_, err := svcs.SnapshotRepo.Upsert(context.Background(), portfolioID, testutil.MustDate(t, date), model.HoldingsData{
		symbol: model.NewHoldingEntry(testutil.Dec(price), testutil.Dec(shares)),
	})
	require.NoError(t, err)
}
