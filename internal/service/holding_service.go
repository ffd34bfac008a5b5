package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// ValuationMode tells which engine path valued a new holding.
type ValuationMode string

const (
	ModeLive     ValuationMode = "live"
	ModeBackfill ValuationMode = "backfill"
)

// AddHoldingInput is a validated request to buy shares of a symbol into a portfolio.
type AddHoldingInput struct {
	Symbol        string
	Shares        decimal.Decimal
	BoughtAtPrice decimal.Decimal
	BoughtAtDate  time.Time
}

// AddHoldingResult is the outcome of AddHolding.
type AddHoldingResult struct {
	Holding  model.Holding            `json:"holding"`
	Mode     ValuationMode            `json:"mode"`
	Snapshot *model.PortfolioSnapshot `json:"snapshot,omitempty"`
	Backfill *BackfillResult          `json:"backfill,omitempty"`
}

// HoldingService records purchases and dispatches them to the valuation engine.
type HoldingService struct {
	holdingRepo      HoldingStore
	portfolioService *PortfolioService
	valuationService *ValuationService
	now              func() time.Time
	logger           *logging.Logger
}

// NewHoldingService creates a new HoldingService.
func NewHoldingService(
	holdingRepo HoldingStore,
	portfolioService *PortfolioService,
	valuationService *ValuationService,
	opts ...Option,
) *HoldingService {
	o := newOptions(opts)
	return &HoldingService{
		holdingRepo:      holdingRepo,
		portfolioService: portfolioService,
		valuationService: valuationService,
		now:              o.now,
		logger:           o.logger.Component("holding"),
	}
}

// AddHolding values a purchase and records it.
//
// A purchase dated today goes through RecordLiveContribution; an earlier one through
// BackfillHistoricalContribution. The holding row is stored only after valuation
// succeeded, so a purchase that could not be valued leaves no trace.
//
// Returns:
//   - ErrPortfolioNotFound if the portfolio does not exist or is not owned by ownerID
//   - ErrInvalidSymbol, ErrInvalidQuantity or ErrInvalidDate for bad input, including a future date
//   - any error of the valuation path (ErrUpstreamUnavailable, ErrNoHistoricalData, ...)
func (s *HoldingService) AddHolding(ctx context.Context, ownerID, portfolioID string, input AddHoldingInput) (AddHoldingResult, error) {
	if _, err := s.portfolioService.GetOwnedPortfolio(ctx, ownerID, portfolioID); err != nil {
		return AddHoldingResult{}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	if symbol == "" {
		return AddHoldingResult{}, apperrors.ErrInvalidSymbol
	}
	if !input.Shares.IsPositive() || !input.BoughtAtPrice.IsPositive() {
		return AddHoldingResult{}, apperrors.ErrInvalidQuantity
	}

	today := model.Day(s.now())
	boughtAt := model.Day(input.BoughtAtDate)
	if boughtAt.After(today) {
		return AddHoldingResult{}, fmt.Errorf("%w: purchase date %s is in the future", apperrors.ErrInvalidDate, model.FormatDate(boughtAt))
	}

	result := AddHoldingResult{}
	if boughtAt.Equal(today) {
		snapshot, err := s.valuationService.RecordLiveContribution(ctx, portfolioID, symbol, input.Shares, input.BoughtAtPrice)
		if err != nil {
			return AddHoldingResult{}, err
		}
		result.Mode = ModeLive
		result.Snapshot = &snapshot
	} else {
		backfill, err := s.valuationService.BackfillHistoricalContribution(ctx, portfolioID, symbol, input.Shares, input.BoughtAtPrice, boughtAt)
		if err != nil {
			return AddHoldingResult{}, err
		}
		result.Mode = ModeBackfill
		result.Backfill = &backfill
	}

	holding := model.Holding{
		ID:            uuid.New().String(),
		PortfolioID:   portfolioID,
		Symbol:        symbol,
		Shares:        input.Shares,
		BoughtAtPrice: input.BoughtAtPrice,
		BoughtAtDate:  boughtAt,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.holdingRepo.InsertHolding(ctx, holding); err != nil {
		s.logger.Error().
			Err(err).
			Str("portfolio_id", portfolioID).
			Str("symbol", symbol).
			Msg("holding valued but not recorded")
		return AddHoldingResult{}, fmt.Errorf("failed to record holding: %w", err)
	}

	s.logger.Info().
		Str("portfolio_id", portfolioID).
		Str("holding_id", holding.ID).
		Str("symbol", symbol).
		Str("mode", string(result.Mode)).
		Msg("added holding")

	result.Holding = holding
	return result, nil
}

// ListHoldings returns the holdings of a portfolio owned by ownerID, oldest purchase first.
func (s *HoldingService) ListHoldings(ctx context.Context, ownerID, portfolioID string) ([]model.Holding, error) {
	if _, err := s.portfolioService.GetOwnedPortfolio(ctx, ownerID, portfolioID); err != nil {
		return nil, err
	}
	return s.holdingRepo.GetHoldingsByPortfolio(ctx, portfolioID)
}
