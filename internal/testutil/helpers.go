package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/database"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/repository"
	"github.com/ndewijer/portfolio-valuation/internal/service"
)

// DefaultUserID owns every portfolio created by the builders unless overridden.
const DefaultUserID = "test-user"

// Services bundles a fully wired service layer on top of a test database.
type Services struct {
	Portfolios  *service.PortfolioService
	Holdings    *service.HoldingService
	Valuation   *service.ValuationService
	Revaluation *service.RevaluationService
	System      *service.SystemService

	PortfolioRepo *repository.PortfolioRepository
	HoldingRepo   *repository.HoldingRepository
	SnapshotRepo  *repository.SnapshotRepository
}

// NewTestServices wires every service against db and the given price gateway.
// Extra options (clock, publisher, ...) are applied to every service.
//
// Example:
//
//	gw := testutil.NewMockGateway().WithQuote("AAPL", "150")
//	svcs := testutil.NewTestServices(t, db, gw, service.WithClock(testutil.FixedClock(today)))
func NewTestServices(t *testing.T, db *sql.DB, gateway service.PriceGateway, opts ...service.Option) *Services {
	t.Helper()

	portfolioRepo := repository.NewPortfolioRepository(db, database.SQLite)
	holdingRepo := repository.NewHoldingRepository(db, database.SQLite)
	snapshotRepo := repository.NewSnapshotRepository(db, database.SQLite)

	portfolios := service.NewPortfolioService(portfolioRepo, opts...)
	valuation := service.NewValuationService(gateway, snapshotRepo, portfolioRepo, opts...)

	return &Services{
		Portfolios:    portfolios,
		Holdings:      service.NewHoldingService(holdingRepo, portfolios, valuation, opts...),
		Valuation:     valuation,
		Revaluation:   service.NewRevaluationService(gateway, snapshotRepo, opts...),
		System:        service.NewSystemService(db, database.SQLite),
		PortfolioRepo: portfolioRepo,
		HoldingRepo:   holdingRepo,
		SnapshotRepo:  snapshotRepo,
	}
}

// NewTestValuationService creates a ValuationService backed by db and gateway.
func NewTestValuationService(t *testing.T, db *sql.DB, gateway service.PriceGateway, opts ...service.Option) *service.ValuationService {
	t.Helper()
	return NewTestServices(t, db, gateway, opts...).Valuation
}

// FixedClock returns a clock that always reports now.
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time {
		return now
	}
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MustDate parses a YYYY-MM-DD string or fails the test.
func MustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("invalid test date %q: %v", s, err)
	}
	return d
}

// Dec parses a decimal literal. It panics on malformed input, which is a test bug.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DailySeries builds one price point per calendar day starting at start.
func DailySeries(start time.Time, prices ...string) []model.PricePoint {
	series := make([]model.PricePoint, 0, len(prices))
	for i, p := range prices {
		series = append(series, model.PricePoint{
			Date:  model.Day(start).AddDate(0, 0, i),
			Price: Dec(p),
		})
	}
	return series
}

// MakeID generates a unique ID for test data.
func MakeID() string {
	return uuid.New().String()
}

// MakeSymbol generates a unique ticker symbol with the given base.
//
// Example: MakeSymbol("AAPL") -> "AAPLX4F2"
func MakeSymbol(base string) string {
	return base + randomAlphanumeric(4)
}

// MakePortfolioName generates a unique portfolio name with the given base.
//
// Example: MakePortfolioName("Test Portfolio") -> "Test Portfolio A1B2C3"
func MakePortfolioName(base string) string {
	return base + " " + randomAlphanumeric(6)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
