package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/logging"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// PortfolioService handles portfolio ownership and lifecycle.
// Portfolios are scoped to the user that created them; another user's portfolio is
// reported as not found.
type PortfolioService struct {
	portfolioRepo PortfolioStore
	now           func() time.Time
	logger        *logging.Logger
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(portfolioRepo PortfolioStore, opts ...Option) *PortfolioService {
	o := newOptions(opts)
	return &PortfolioService{
		portfolioRepo: portfolioRepo,
		now:           o.now,
		logger:        o.logger.Component("portfolio"),
	}
}

// CreatePortfolio creates an empty portfolio owned by ownerID.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, ownerID, name, description string) (model.Portfolio, error) {
	if strings.TrimSpace(ownerID) == "" {
		return model.Portfolio{}, apperrors.ErrMissingUser
	}

	portfolio := model.Portfolio{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now().UTC(),
	}

	if err := s.portfolioRepo.InsertPortfolio(ctx, portfolio); err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to create portfolio: %w", err)
	}

	s.logger.Info().
		Str("portfolio_id", portfolio.ID).
		Str("owner_id", ownerID).
		Msg("created portfolio")

	return portfolio, nil
}

// GetPortfoliosByOwner returns every portfolio of ownerID. Returns an empty slice if the
// user has none.
func (s *PortfolioService) GetPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.ErrMissingUser
	}
	return s.portfolioRepo.GetPortfoliosByOwner(ctx, ownerID)
}

// GetOwnedPortfolio retrieves a portfolio and checks it belongs to ownerID.
// Returns ErrPortfolioNotFound if it does not exist or belongs to someone else.
func (s *PortfolioService) GetOwnedPortfolio(ctx context.Context, ownerID, portfolioID string) (model.Portfolio, error) {
	portfolio, err := s.portfolioRepo.GetPortfolioOnID(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}

	if portfolio.OwnerID != ownerID {
		s.logger.Warn().
			Str("portfolio_id", portfolioID).
			Str("owner_id", ownerID).
			Msg("portfolio access denied")
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}

	return portfolio, nil
}
