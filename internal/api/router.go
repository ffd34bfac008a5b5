// Package api wires the HTTP handlers into a chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ndewijer/portfolio-valuation/internal/api/handlers"
	custommiddleware "github.com/ndewijer/portfolio-valuation/internal/api/middleware"
	"github.com/ndewijer/portfolio-valuation/internal/config"
	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/service"
)

// Services holds everything the router exposes.
type Services struct {
	System    *service.SystemService
	Portfolio *service.PortfolioService
	Holding   *service.HoldingService
	Valuation *service.ValuationService
	Feed      handlers.FeedServer
}

// NewRouter creates and configures the HTTP router
func NewRouter(svcs Services, cfg *config.Config, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svcs.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Use(custommiddleware.RequireUser)

			portfolioHandler := handlers.NewPortfolioHandler(svcs.Portfolio)
			holdingHandler := handlers.NewHoldingHandler(svcs.Holding, svcs.Valuation)
			valuationHandler := handlers.NewValuationHandler(svcs.Portfolio, svcs.Valuation)
			liveHandler := handlers.NewLiveHandler(svcs.Portfolio, svcs.Feed)

			r.Get("/", portfolioHandler.Portfolios)
			r.Post("/", portfolioHandler.CreatePortfolio)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)

				r.Get("/holdings", holdingHandler.Holdings)
				r.Post("/holdings", holdingHandler.AddHolding)
				r.Get("/chart", valuationHandler.Chart)
				r.Get("/chart.png", valuationHandler.ChartPNG)
				r.Get("/snapshot/{date}", valuationHandler.Snapshot)
				r.Get("/live", liveHandler.Live)
			})
		})
	})

	return r
}
