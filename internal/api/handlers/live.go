package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-valuation/internal/service"
)

// FeedServer streams snapshot events of one portfolio over a websocket.
type FeedServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, portfolioID string)
}

// LiveHandler serves the websocket feed of newly written snapshots.
type LiveHandler struct {
	portfolioService *service.PortfolioService
	feed             FeedServer
}

// NewLiveHandler creates a new LiveHandler
func NewLiveHandler(portfolioService *service.PortfolioService, feed FeedServer) *LiveHandler {
	return &LiveHandler{
		portfolioService: portfolioService,
		feed:             feed,
	}
}

// Live upgrades the request to a websocket that receives every snapshot written for the
// portfolio from now on. Ownership is checked before the upgrade.
//
// Endpoint: GET /api/portfolio/{uuid}/live
// Response: 101 Switching Protocols, then JSON feed.Event messages
// Error: 404 Not Found if the portfolio is unknown or owned by another user
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.portfolioService.GetOwnedPortfolio(r.Context(), userID(r), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve portfolio")
		return
	}

	h.feed.ServeWS(w, r, portfolio.ID)
}
