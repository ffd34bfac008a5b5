package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/ndewijer/portfolio-valuation/internal/api"
	"github.com/ndewijer/portfolio-valuation/internal/config"
	"github.com/ndewijer/portfolio-valuation/internal/database"
	"github.com/ndewijer/portfolio-valuation/internal/eodhd"
	"github.com/ndewijer/portfolio-valuation/internal/feed"
	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/pricing"
	"github.com/ndewijer/portfolio-valuation/internal/repository"
	"github.com/ndewijer/portfolio-valuation/internal/scheduler"
	"github.com/ndewijer/portfolio-valuation/internal/service"
	"github.com/ndewijer/portfolio-valuation/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.NewLogger(cfg.Log.Level)
	zlog.Logger = logger.Logger

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx := context.Background()

	// Open database connection
	dialect, err := database.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}

	dsn := cfg.Database.DSN
	if dialect == database.SQLite {
		dsn = cfg.Database.Path
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return err
		}
	}

	db, err := database.Open(dialect, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, dialect)
	if err != nil {
		return err
	}
	logger.Info().Str("driver", string(dialect)).Ints64("migrations_applied", applied).Msg("connected to database")

	// Price providers
	yahooClient := yahoo.NewFinanceClient(
		yahoo.WithBaseURL(cfg.Pricing.YahooBaseURL),
		yahoo.WithRateLimit(cfg.Pricing.YahooRateLimit),
		yahoo.WithTimeout(cfg.Pricing.Timeout),
		yahoo.WithLogger(logger),
	)

	var history pricing.HistoryProvider = pricing.NewYahooHistoryProvider(yahooClient)
	if cfg.Pricing.HistoryProvider == config.HistoryProviderEODHD {
		eodhdClient := eodhd.NewClient(cfg.Pricing.EODHDAPIKey,
			eodhd.WithBaseURL(cfg.Pricing.EODHDBaseURL),
			eodhd.WithRateLimit(cfg.Pricing.EODHDRateLimit),
			eodhd.WithTimeout(cfg.Pricing.Timeout),
			eodhd.WithLogger(logger),
		)
		history = pricing.NewEODHDHistoryProvider(eodhdClient, cfg.Pricing.EODHDExchange)
	}
	logger.Info().Str("history_provider", cfg.Pricing.HistoryProvider).Msg("price providers configured")

	gateway := pricing.NewGateway(
		pricing.NewYahooQuoteProvider(yahooClient),
		history,
		pricing.WithTimeout(cfg.Pricing.Timeout),
		pricing.WithLogger(logger),
	)

	// Snapshot feed
	hub := feed.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db, dialect)
	holdingRepo := repository.NewHoldingRepository(db, dialect)
	snapshotRepo := repository.NewSnapshotRepository(db, dialect)

	// Create services
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithPublisher(hub),
		service.WithWorkers(cfg.Revaluation.Workers),
	}
	systemService := service.NewSystemService(db, dialect)
	portfolioService := service.NewPortfolioService(portfolioRepo, opts...)
	valuationService := service.NewValuationService(gateway, snapshotRepo, portfolioRepo, opts...)
	holdingService := service.NewHoldingService(holdingRepo, portfolioService, valuationService, opts...)
	revaluationService := service.NewRevaluationService(gateway, snapshotRepo, opts...)

	// Daily revaluation
	var sched *scheduler.Scheduler
	if cfg.Revaluation.Schedule != "" {
		sched, err = scheduler.New(cfg.Revaluation.Schedule, revaluationService, 10*time.Minute, logger)
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		logger.Info().Msg("revaluation schedule disabled")
	}

	// Create router
	router := api.NewRouter(api.Services{
		System:    systemService,
		Portfolio: portfolioService,
		Holding:   holdingService,
		Valuation: valuationService,
		Feed:      hub,
	}, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("version", service.Version).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	logger.Info().Msg("server exited")
	return nil
}
