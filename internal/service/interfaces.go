package service

import (
	"context"
	"time"

	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// PriceGateway is the fail-soft price source the valuation engine depends on.
// A nil quote or an empty series means the data is unavailable.
type PriceGateway interface {
	GetCurrentQuote(ctx context.Context, symbol string) *model.Quote
	GetHistoricalSeries(ctx context.Context, symbol string, start, end time.Time) []model.PricePoint
}

// SnapshotStore persists one snapshot per (portfolio, date) and owns the merge of
// contributions into existing snapshots.
type SnapshotStore interface {
	Find(ctx context.Context, portfolioID string, date time.Time) (*model.PortfolioSnapshot, error)
	Upsert(ctx context.Context, portfolioID string, date time.Time, patch model.HoldingsData) (model.PortfolioSnapshot, error)
	UpsertBatch(ctx context.Context, portfolioID string, contributions []model.DatedContribution) ([]model.PortfolioSnapshot, error)
	Range(ctx context.Context, portfolioID string, start, end time.Time) ([]model.PortfolioSnapshot, error)
}

// PortfolioStore reads and creates portfolios.
type PortfolioStore interface {
	InsertPortfolio(ctx context.Context, p model.Portfolio) error
	GetPortfolioOnID(ctx context.Context, portfolioID string) (model.Portfolio, error)
	GetPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error)
}

// HoldingStore reads and creates holdings.
type HoldingStore interface {
	InsertHolding(ctx context.Context, h model.Holding) error
	GetHoldingsByPortfolio(ctx context.Context, portfolioID string) ([]model.Holding, error)
}

// SnapshotPublisher receives every snapshot after it has been written.
// Publish must not block.
type SnapshotPublisher interface {
	Publish(snapshot model.PortfolioSnapshot)
}

type noopPublisher struct{}

func (noopPublisher) Publish(model.PortfolioSnapshot) {}

// Option configures the optional collaborators of a service.
type Option func(*options)

type options struct {
	now       func() time.Time
	logger    *logging.Logger
	publisher SnapshotPublisher
	workers   int
}

func newOptions(opts []Option) options {
	o := options{
		now:       time.Now,
		logger:    logging.NewSilentLogger(),
		publisher: noopPublisher{},
		workers:   4,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the time source used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPublisher sets where written snapshots are announced.
func WithPublisher(publisher SnapshotPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithWorkers sets how many portfolios are revalued concurrently.
func WithWorkers(workers int) Option {
	return func(o *options) {
		if workers > 0 {
			o.workers = workers
		}
	}
}
