package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// PortfolioLookup resolves a portfolio by ID.
type PortfolioLookup interface {
	GetPortfolioOnID(ctx context.Context, portfolioID string) (model.Portfolio, error)
}

// ValuationService turns holding contributions into daily portfolio snapshots and serves
// the resulting value series.
//
// All writes go through SnapshotStore.Upsert or UpsertBatch, which merge a per-symbol patch
// into the day's snapshot by replacing that symbol's entry and re-summing the total. A
// contribution is therefore always the full position of its symbol on that day, never a
// delta, and replaying the same contribution leaves the snapshot unchanged.
type ValuationService struct {
	gateway    PriceGateway
	snapshots  SnapshotStore
	portfolios PortfolioLookup
	now        func() time.Time
	logger     *logging.Logger
	publisher  SnapshotPublisher
}

// NewValuationService creates a new ValuationService.
func NewValuationService(
	gateway PriceGateway,
	snapshots SnapshotStore,
	portfolios PortfolioLookup,
	opts ...Option,
) *ValuationService {
	o := newOptions(opts)
	return &ValuationService{
		gateway:    gateway,
		snapshots:  snapshots,
		portfolios: portfolios,
		now:        o.now,
		logger:     o.logger.Component("valuation"),
		publisher:  o.publisher,
	}
}

// BackfillResult summarizes a historical backfill.
type BackfillResult struct {
	Symbol        string    `json:"symbol"`
	DatesWritten  int       `json:"datesWritten"`
	FirstDate     time.Time `json:"firstDate"`
	LastDate      time.Time `json:"lastDate"`
	UsedLiveQuote bool      `json:"usedLiveQuote"` // today's point came from the current quote
}

// Today returns the current UTC calendar day.
func (s *ValuationService) Today() time.Time {
	return model.Day(s.now())
}

// RecordLiveContribution values a holding bought today and merges it into today's snapshot.
//
// The current quote is fetched only to confirm the symbol is tradeable right now; the entry
// is valued at the caller's price, so value = price × shares.
//
// Returns:
//   - ErrPortfolioNotFound if the portfolio does not exist
//   - ErrUpstreamUnavailable if no current quote could be obtained (nothing is written)
//   - ErrInconsistentAggregate if today's stored snapshot is corrupted
func (s *ValuationService) RecordLiveContribution(
	ctx context.Context,
	portfolioID, symbol string,
	shares, price decimal.Decimal,
) (model.PortfolioSnapshot, error) {
	if _, err := s.portfolios.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return model.PortfolioSnapshot{}, err
	}

	if quote := s.gateway.GetCurrentQuote(ctx, symbol); quote == nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("%w: current quote for %s", apperrors.ErrUpstreamUnavailable, symbol)
	}

	today := s.Today()
	patch := model.HoldingsData{symbol: model.NewHoldingEntry(price, shares)}

	snapshot, err := s.snapshots.Upsert(ctx, portfolioID, today, patch)
	if err != nil {
		return model.PortfolioSnapshot{}, s.storeError(err, portfolioID, today)
	}

	s.logger.Info().
		Str("portfolio_id", portfolioID).
		Str("symbol", symbol).
		Str("date", model.FormatDate(today)).
		Str("total_value", snapshot.TotalValue.String()).
		Msg("recorded live contribution")

	s.publisher.Publish(snapshot)
	return snapshot, nil
}

// BackfillHistoricalContribution values a holding bought before today at every daily close
// from the purchase date through today and merges each day into that day's snapshot.
//
// Each day is valued at that day's close, not at the purchase price. Today is always
// written: when the historical series does not contain today, the current quote supplies
// it. Every price is gathered before the first write, and all dates are written in one
// transaction in ascending order, so the operation either writes every date or none.
// Days without a close (weekends, holidays) get no row.
//
// Returns:
//   - ErrInvalidDate if boughtAtDate is not strictly before today
//   - ErrPortfolioNotFound if the portfolio does not exist
//   - ErrNoHistoricalData if the history provider returned nothing for the window
//   - ErrUpstreamUnavailable if today's price was needed from the live quote and was unavailable
func (s *ValuationService) BackfillHistoricalContribution(
	ctx context.Context,
	portfolioID, symbol string,
	shares, price decimal.Decimal,
	boughtAtDate time.Time,
) (BackfillResult, error) {
	today := s.Today()
	start := model.Day(boughtAtDate)
	if !start.Before(today) {
		return BackfillResult{}, fmt.Errorf("%w: backfill requires a purchase date before %s", apperrors.ErrInvalidDate, model.FormatDate(today))
	}

	if _, err := s.portfolios.GetPortfolioOnID(ctx, portfolioID); err != nil {
		return BackfillResult{}, err
	}

	series := model.ClipSeries(s.gateway.GetHistoricalSeries(ctx, symbol, start, today), start, today)
	if len(series) == 0 {
		return BackfillResult{}, fmt.Errorf("%w: %s since %s", apperrors.ErrNoHistoricalData, symbol, model.FormatDate(start))
	}

	result := BackfillResult{Symbol: symbol}
	if !series[len(series)-1].Date.Equal(today) {
		quote := s.gateway.GetCurrentQuote(ctx, symbol)
		if quote == nil {
			return BackfillResult{}, fmt.Errorf("%w: current quote for %s needed for today's value", apperrors.ErrUpstreamUnavailable, symbol)
		}
		series = append(series, model.PricePoint{Date: today, Price: quote.CurrentPrice})
		result.UsedLiveQuote = true
	}

	contributions := make([]model.DatedContribution, 0, len(series))
	for _, point := range series {
		contributions = append(contributions, model.DatedContribution{
			Date:  point.Date,
			Patch: model.HoldingsData{symbol: model.NewHoldingEntry(point.Price, shares)},
		})
	}

	snapshots, err := s.snapshots.UpsertBatch(ctx, portfolioID, contributions)
	if err != nil {
		return BackfillResult{}, s.storeError(err, portfolioID, start)
	}

	for _, snapshot := range snapshots {
		s.logger.Debug().
			Str("portfolio_id", portfolioID).
			Str("symbol", symbol).
			Str("date", model.FormatDate(snapshot.Date)).
			Str("total_value", snapshot.TotalValue.String()).
			Msg("backfilled snapshot")
		s.publisher.Publish(snapshot)
	}

	result.DatesWritten = len(snapshots)
	result.FirstDate = series[0].Date
	result.LastDate = series[len(series)-1].Date

	s.logger.Info().
		Str("portfolio_id", portfolioID).
		Str("symbol", symbol).
		Str("bought_at_price", price.String()).
		Int("dates_written", result.DatesWritten).
		Bool("used_live_quote", result.UsedLiveQuote).
		Msg("backfilled historical contribution")

	return result, nil
}

// GetChartSeries returns (date, total value) for every snapshot of the portfolio with
// startDate <= date <= endDate, ascending. Days without a snapshot are omitted rather than
// filled. An empty range yields an empty, non-nil slice.
//
// Returns ErrInvalidDateRange if startDate is after endDate.
func (s *ValuationService) GetChartSeries(ctx context.Context, portfolioID string, startDate, endDate time.Time) ([]model.ChartPoint, error) {
	start, end := model.Day(startDate), model.Day(endDate)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", apperrors.ErrInvalidDateRange, model.FormatDate(start), model.FormatDate(end))
	}

	snapshots, err := s.snapshots.Range(ctx, portfolioID, start, end)
	if err != nil {
		return nil, s.storeError(err, portfolioID, start)
	}

	points := make([]model.ChartPoint, 0, len(snapshots))
	for _, snapshot := range snapshots {
		points = append(points, model.ChartPoint{
			Date:       model.FormatDate(snapshot.Date),
			TotalValue: snapshot.TotalValue,
		})
	}
	return points, nil
}

// GetSnapshot returns the full snapshot, including the per-symbol breakdown, of one day.
// Returns ErrSnapshotNotFound if the portfolio has no snapshot for that day.
func (s *ValuationService) GetSnapshot(ctx context.Context, portfolioID string, date time.Time) (model.PortfolioSnapshot, error) {
	day := model.Day(date)

	snapshot, err := s.snapshots.Find(ctx, portfolioID, day)
	if err != nil {
		return model.PortfolioSnapshot{}, s.storeError(err, portfolioID, day)
	}
	if snapshot == nil {
		return model.PortfolioSnapshot{}, fmt.Errorf("%w: %s", apperrors.ErrSnapshotNotFound, model.FormatDate(day))
	}
	return *snapshot, nil
}

// storeError logs integrity failures loudly and passes every error through unchanged.
func (s *ValuationService) storeError(err error, portfolioID string, date time.Time) error {
	if errors.Is(err, apperrors.ErrInconsistentAggregate) {
		s.logger.Error().
			Err(err).
			Str("portfolio_id", portfolioID).
			Str("date", model.FormatDate(date)).
			Msg("inconsistent snapshot aggregate")
	}
	return err
}
