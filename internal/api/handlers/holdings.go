package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-valuation/internal/api/request"
	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/validation"
)

// HoldingHandler handles purchases of shares into a portfolio.
type HoldingHandler struct {
	holdingService   *service.HoldingService
	valuationService *service.ValuationService
}

// NewHoldingHandler creates a new HoldingHandler
func NewHoldingHandler(holdingService *service.HoldingService, valuationService *service.ValuationService) *HoldingHandler {
	return &HoldingHandler{
		holdingService:   holdingService,
		valuationService: valuationService,
	}
}

// Holdings handles GET requests listing the purchases recorded in a portfolio.
//
// Endpoint: GET /api/portfolio/{uuid}/holdings
// Response: 200 OK with []model.Holding
// Error: 404 Not Found if the portfolio is unknown or owned by another user
func (h *HoldingHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.holdingService.ListHoldings(r.Context(), userID(r), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve holdings")
		return
	}

	response.RespondJSON(w, http.StatusOK, holdings)
}

// AddHolding handles POST requests buying shares into a portfolio. A purchase dated today
// is valued live; an earlier one backfills every day from the purchase date to today.
//
// Endpoint: POST /api/portfolio/{uuid}/holdings
// Request: request.AddHoldingRequest
// Response: 201 Created with service.AddHoldingResult
// Errors:
//   - 400 Bad Request on invalid input or a future date
//   - 404 Not Found if the portfolio is unknown or owned by another user
//   - 422 Unprocessable Entity if the provider has no history for the symbol
//   - 503 Service Unavailable if a price provider is down; nothing was written
func (h *HoldingHandler) AddHolding(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.AddHoldingRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := validation.ValidateAddHolding(req, h.valuationService.Today())
	if err != nil {
		respondServiceError(w, err, "validation failed")
		return
	}

	result, err := h.holdingService.AddHolding(r.Context(), userID(r), chi.URLParam(r, "uuid"), input)
	if err != nil {
		respondServiceError(w, err, "failed to add holding")
		return
	}

	response.RespondJSON(w, http.StatusCreated, result)
}
