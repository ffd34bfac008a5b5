package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// LatestSnapshotStore reads the positions to carry forward and writes them into today's
// snapshot without touching entries already recorded for the day.
type LatestSnapshotStore interface {
	LatestBefore(ctx context.Context, before time.Time) ([]model.PortfolioSnapshot, map[string]error, error)
	Find(ctx context.Context, portfolioID string, date time.Time) (*model.PortfolioSnapshot, error)
	CarryForward(ctx context.Context, portfolioID string, date time.Time, patch model.HoldingsData) (model.PortfolioSnapshot, error)
}

// RevaluationReport summarizes one RevalueAll run.
type RevaluationReport struct {
	Date       time.Time         `json:"date"`
	Portfolios int               `json:"portfolios"`
	Updated    int               `json:"updated"`
	Current    int               `json:"current"`  // today's row already held every symbol
	Skipped    []string          `json:"skipped"`  // portfolio IDs with an unavailable quote
	Failures   map[string]string `json:"failures"` // portfolio ID -> load or store error
}

// carry is the part of a portfolio's last snapshot that today's row does not hold yet.
type carry struct {
	portfolioID string
	holdings    model.HoldingsData
}

// RevaluationService carries every portfolio's latest positions forward to today at
// current prices.
type RevaluationService struct {
	gateway   PriceGateway
	snapshots LatestSnapshotStore
	now       func() time.Time
	logger    *logging.Logger
	publisher SnapshotPublisher
	workers   int
}

// NewRevaluationService creates a new RevaluationService.
func NewRevaluationService(gateway PriceGateway, snapshots LatestSnapshotStore, opts ...Option) *RevaluationService {
	o := newOptions(opts)
	return &RevaluationService{
		gateway:   gateway,
		snapshots: snapshots,
		now:       o.now,
		logger:    o.logger.Component("revaluation"),
		publisher: o.publisher,
		workers:   o.workers,
	}
}

// RevalueAll carries the positions of every portfolio's last snapshot before today into
// today's snapshot, priced at current quotes with unchanged share counts.
//
// Symbols already in today's row were written by a purchase or an earlier run and are
// kept as they are; only missing symbols are added. Each distinct symbol is quoted once
// per run. A portfolio is skipped when any of its missing symbols has no quote, so the
// job never writes a half-priced carry. A failure on one portfolio, including an
// undecodable snapshot, is recorded in Failures and does not stop the others.
func (s *RevaluationService) RevalueAll(ctx context.Context) (RevaluationReport, error) {
	today := model.Day(s.now())
	report := RevaluationReport{
		Date:     today,
		Skipped:  []string{},
		Failures: map[string]string{},
	}

	latest, broken, err := s.snapshots.LatestBefore(ctx, today)
	if err != nil {
		return report, fmt.Errorf("failed to load latest snapshots: %w", err)
	}
	report.Portfolios = len(latest) + len(broken)
	for portfolioID, err := range broken {
		s.fail(&report, nil, portfolioID, err, "latest snapshot is unreadable")
	}

	pending := make([]carry, 0, len(latest))
	for _, snapshot := range latest {
		current, err := s.snapshots.Find(ctx, snapshot.PortfolioID, today)
		if err != nil {
			s.fail(&report, nil, snapshot.PortfolioID, err, "today's snapshot is unreadable")
			continue
		}

		missing := snapshot.HoldingsData
		if current != nil {
			missing = missing.Without(current.HoldingsData)
		}
		if len(missing) == 0 {
			report.Current++
			continue
		}
		pending = append(pending, carry{portfolioID: snapshot.PortfolioID, holdings: missing})
	}

	if len(pending) > 0 {
		s.carryAll(ctx, today, pending, &report)
	}

	sort.Strings(report.Skipped)

	s.logger.Info().
		Str("date", model.FormatDate(today)).
		Int("portfolios", report.Portfolios).
		Int("updated", report.Updated).
		Int("current", report.Current).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failures)).
		Msg("revaluation finished")

	return report, ctx.Err()
}

// carryAll prices and writes every pending carry with a bounded number of workers.
func (s *RevaluationService) carryAll(ctx context.Context, today time.Time, pending []carry, report *RevaluationReport) {
	quotes := s.quoteAll(ctx, pending)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, c := range pending {
		g.Go(func() error {
			patch, ok := repricePatch(c.holdings, quotes)
			if !ok {
				mu.Lock()
				report.Skipped = append(report.Skipped, c.portfolioID)
				mu.Unlock()
				s.logger.Warn().
					Str("portfolio_id", c.portfolioID).
					Msg("skipping revaluation, quote unavailable")
				return nil
			}

			written, err := s.snapshots.CarryForward(gctx, c.portfolioID, today, patch)
			if err != nil {
				s.fail(report, &mu, c.portfolioID, err, "revaluation write failed")
				return nil
			}

			mu.Lock()
			report.Updated++
			mu.Unlock()
			s.publisher.Publish(written)
			return nil
		})
	}

	_ = g.Wait()
}

// fail records a per-portfolio failure. mu guards report when workers are running.
func (s *RevaluationService) fail(report *RevaluationReport, mu *sync.Mutex, portfolioID string, err error, msg string) {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	report.Failures[portfolioID] = err.Error()
	s.logger.Error().
		Err(err).
		Str("portfolio_id", portfolioID).
		Msg(msg)
}

// quoteAll fetches the current quote of every distinct symbol. Symbols without a quote
// are absent from the result.
func (s *RevaluationService) quoteAll(ctx context.Context, pending []carry) map[string]model.Quote {
	symbols := map[string]struct{}{}
	for _, c := range pending {
		for _, symbol := range c.holdings.Symbols() {
			symbols[symbol] = struct{}{}
		}
	}

	var mu sync.Mutex
	quotes := make(map[string]model.Quote, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for symbol := range symbols {
		g.Go(func() error {
			quote := s.gateway.GetCurrentQuote(gctx, symbol)
			if quote == nil {
				return nil
			}
			mu.Lock()
			quotes[symbol] = *quote
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

// repricePatch values every entry of data at its quote. It reports false if any symbol
// has no quote.
func repricePatch(data model.HoldingsData, quotes map[string]model.Quote) (model.HoldingsData, bool) {
	patch := make(model.HoldingsData, len(data))
	for symbol, entry := range data {
		quote, ok := quotes[symbol]
		if !ok {
			return nil, false
		}
		patch[symbol] = model.NewHoldingEntry(quote.CurrentPrice, entry.Shares)
	}
	return patch, true
}
