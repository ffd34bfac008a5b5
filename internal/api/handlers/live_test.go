package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation/internal/api/handlers"
	"github.com/ndewijer/portfolio-valuation/internal/feed"
	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/testutil"
)

// TestLiveHandler_Live tests the GET /api/portfolio/{uuid}/live websocket feed.
//
// WHY: Subscribers must receive the snapshots written by the engine for their own
// portfolio, and the upgrade must be refused before any socket is opened for
// portfolios the caller does not own.
func TestLiveHandler_Live(t *testing.T) {
	hub := feed.NewHub(logging.NewSilentLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)

	gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
	svcs, db := setupServices(t, gw, service.WithPublisher(hub))
	portfolio := testutil.NewPortfolio().Build(t, db)
	handler := handlers.NewLiveHandler(svcs.Portfolios, hub)

	serveAs := func(userID string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = testutil.WithURLParams(testutil.AsUser(r, userID), map[string]string{"uuid": portfolio.ID})
			handler.Live(w, r)
		}))
	}

	t.Run("streams snapshots written by the engine", func(t *testing.T) {
		server := serveAs(testutil.DefaultUserID)
		defer server.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
		require.NoError(t, err)
		defer conn.Close()
		require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

		_, err = svcs.Holdings.AddHolding(context.Background(), testutil.DefaultUserID, portfolio.ID, service.AddHoldingInput{
			Symbol:        "AAPL",
			Shares:        testutil.Dec("4"),
			BoughtAtPrice: testutil.Dec("150"),
			BoughtAtDate:  now,
		})
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var event feed.Event
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, portfolio.ID, event.PortfolioID)
		assert.Equal(t, "2024-03-15", event.Date)
		assert.Equal(t, "600", event.TotalValue.String())
	})

	t.Run("refuses another user's portfolio", func(t *testing.T) {
		server := serveAs("intruder")
		defer server.Close()

		_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
