package handlers

import (
	"net/http"
	"time"

	"github.com/ndewijer/portfolio-valuation/internal/api/request"
	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/validation"
)

// PortfolioHandler handles portfolio-related HTTP requests
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioService *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// PortfoliosResponse represents one portfolio in API responses.
type PortfoliosResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Portfolios handles GET requests listing the caller's portfolios.
//
// Endpoint: GET /api/portfolio
// Response: 200 OK with []PortfoliosResponse
func (h *PortfolioHandler) Portfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolioService.GetPortfoliosByOwner(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve portfolios")
		return
	}

	response.RespondJSON(w, http.StatusOK, toPortfoliosResponse(portfolios))
}

// CreatePortfolio handles POST requests creating a portfolio owned by the caller.
//
// Endpoint: POST /api/portfolio
// Request: request.CreatePortfolioRequest
// Response: 201 Created with PortfoliosResponse
// Error: 400 Bad Request on an invalid body
func (h *PortfolioHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreatePortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreatePortfolio(req); err != nil {
		respondServiceError(w, err, "validation failed")
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(r.Context(), userID(r), req.Name, req.Description)
	if err != nil {
		respondServiceError(w, err, "failed to create portfolio")
		return
	}

	response.RespondJSON(w, http.StatusCreated, PortfoliosResponse{
		ID:          portfolio.ID,
		Name:        portfolio.Name,
		Description: portfolio.Description,
		CreatedAt:   portfolio.CreatedAt,
	})
}

func toPortfoliosResponse(portfolios []model.Portfolio) []PortfoliosResponse {
	out := make([]PortfoliosResponse, len(portfolios))
	for i, p := range portfolios {
		out[i] = PortfoliosResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
		}
	}
	return out
}
