package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/chart"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/validation"
)

// ValuationHandler serves the value history of a portfolio.
type ValuationHandler struct {
	portfolioService *service.PortfolioService
	valuationService *service.ValuationService
}

// NewValuationHandler creates a new ValuationHandler
func NewValuationHandler(portfolioService *service.PortfolioService, valuationService *service.ValuationService) *ValuationHandler {
	return &ValuationHandler{
		portfolioService: portfolioService,
		valuationService: valuationService,
	}
}

// ChartResponse is the JSON value series of a portfolio.
type ChartResponse struct {
	PortfolioID string             `json:"portfolioId"`
	StartDate   string             `json:"startDate"`
	EndDate     string             `json:"endDate"`
	Points      []model.ChartPoint `json:"points"`
}

// SnapshotResponse is the per-symbol breakdown of one day.
type SnapshotResponse struct {
	PortfolioID string             `json:"portfolioId"`
	Date        string             `json:"date"`
	TotalValue  decimal.Decimal    `json:"totalValue"`
	Holdings    model.HoldingsData `json:"holdings"`
}

// Chart handles GET requests for the daily value series between two dates.
// Days without a snapshot are omitted.
//
// Endpoint: GET /api/portfolio/{uuid}/chart?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
// Response: 200 OK with ChartResponse
// Errors: 400 Bad Request on bad dates, 404 Not Found for unknown portfolios
func (h *ValuationHandler) Chart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.series(w, r)
	if !ok {
		return
	}

	response.RespondJSON(w, http.StatusOK, ChartResponse{
		PortfolioID: s.portfolio.ID,
		StartDate:   model.FormatDate(s.start),
		EndDate:     model.FormatDate(s.end),
		Points:      s.points,
	})
}

// ChartPNG handles GET requests rendering the value series as a PNG line chart.
// Optional width and height query parameters size the image.
//
// Endpoint: GET /api/portfolio/{uuid}/chart.png?start_date=&end_date=&width=&height=
// Response: 200 OK with image/png
// Errors: 404 Not Found if fewer than two points exist in the range
func (h *ValuationHandler) ChartPNG(w http.ResponseWriter, r *http.Request) {
	opts := chart.Options{}
	for name, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 100 || n > 4000 {
			respondServiceError(w, &validation.Error{Fields: map[string]string{
				name: name + " must be an integer between 100 and 4000",
			}}, "validation failed")
			return
		}
		*dst = n
	}

	s, ok := h.series(w, r)
	if !ok {
		return
	}
	opts.Title = s.portfolio.Name

	var buf bytes.Buffer
	if err := chart.RenderPNG(s.points, opts, &buf); err != nil {
		respondServiceError(w, err, "failed to render chart")
		return
	}

	response.RespondBytes(w, http.StatusOK, "image/png", buf.Bytes())
}

// Snapshot handles GET requests for the per-symbol breakdown of one day.
//
// Endpoint: GET /api/portfolio/{uuid}/snapshot/{date}
// Response: 200 OK with SnapshotResponse
// Errors: 400 Bad Request on a bad date, 404 Not Found if no snapshot exists that day
func (h *ValuationHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "uuid")
	if _, err := h.portfolioService.GetOwnedPortfolio(r.Context(), userID(r), portfolioID); err != nil {
		respondServiceError(w, err, "failed to retrieve portfolio")
		return
	}

	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondServiceError(w, &validation.Error{Fields: map[string]string{"date": "date must be YYYY-MM-DD"}}, "validation failed")
		return
	}

	snapshot, err := h.valuationService.GetSnapshot(r.Context(), portfolioID, date)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve snapshot")
		return
	}

	response.RespondJSON(w, http.StatusOK, SnapshotResponse{
		PortfolioID: snapshot.PortfolioID,
		Date:        model.FormatDate(snapshot.Date),
		TotalValue:  snapshot.TotalValue,
		Holdings:    snapshot.HoldingsData,
	})
}

type chartSeries struct {
	portfolio  model.Portfolio
	start, end time.Time
	points     []model.ChartPoint
}

// series checks ownership, parses the date range and loads the chart points.
// It writes the error response itself and reports ok=false on failure.
func (h *ValuationHandler) series(w http.ResponseWriter, r *http.Request) (chartSeries, bool) {
	portfolio, err := h.portfolioService.GetOwnedPortfolio(r.Context(), userID(r), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, err, "failed to retrieve portfolio")
		return chartSeries{}, false
	}

	query := r.URL.Query()
	start, end, err := validation.ParseDateRange(query.Get("start_date"), query.Get("end_date"), h.valuationService.Today())
	if err != nil {
		respondServiceError(w, err, "invalid date range")
		return chartSeries{}, false
	}

	points, err := h.valuationService.GetChartSeries(r.Context(), portfolio.ID, start, end)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve chart series")
		return chartSeries{}, false
	}

	return chartSeries{portfolio: portfolio, start: start, end: end, points: points}, true
}
