package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/portfolio-valuation/internal/database"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// HoldingRepository provides data access methods for the holding table.
type HoldingRepository struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect database.Dialect
}

// NewHoldingRepository creates a new HoldingRepository with the provided database connection.
func NewHoldingRepository(db *sql.DB, dialect database.Dialect) *HoldingRepository {
	return &HoldingRepository{db: db, dialect: dialect}
}

// WithTx returns a new HoldingRepository scoped to the provided transaction.
func (r *HoldingRepository) WithTx(tx *sql.Tx) *HoldingRepository {
	return &HoldingRepository{
		db:      r.db,
		tx:      tx,
		dialect: r.dialect,
	}
}

func (r *HoldingRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertHolding stores a new holding. Holdings are never updated afterwards.
func (r *HoldingRepository) InsertHolding(ctx context.Context, h model.Holding) error {
	query := `
		INSERT INTO holding (id, portfolio_id, symbol, shares, bought_at_price, bought_at_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, r.dialect.Rebind(query),
		h.ID,
		h.PortfolioID,
		h.Symbol,
		h.Shares.String(),
		h.BoughtAtPrice.String(),
		formatDate(h.BoughtAtDate),
		formatTimestamp(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}

	return nil
}

// GetHoldingsByPortfolio retrieves the holdings of a portfolio ordered by purchase date.
// Returns an empty slice if the portfolio has none.
func (r *HoldingRepository) GetHoldingsByPortfolio(ctx context.Context, portfolioID string) ([]model.Holding, error) {
	query := `
		SELECT id, portfolio_id, symbol, shares, bought_at_price, bought_at_date, created_at
		FROM holding
		WHERE portfolio_id = ?
		ORDER BY bought_at_date ASC, created_at ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, r.dialect.Rebind(query), portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding table: %w", err)
	}
	defer rows.Close()

	holdings := []model.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding table: %w", err)
	}

	return holdings, nil
}

func scanHolding(row rowScanner) (model.Holding, error) {
	var h model.Holding
	var shares, price, boughtAt, createdAt string

	if err := row.Scan(&h.ID, &h.PortfolioID, &h.Symbol, &shares, &price, &boughtAt, &createdAt); err != nil {
		return model.Holding{}, fmt.Errorf("failed to scan holding: %w", err)
	}

	var err error
	if h.Shares, err = parseDecimal("shares", shares); err != nil {
		return model.Holding{}, err
	}
	if h.BoughtAtPrice, err = parseDecimal("bought_at_price", price); err != nil {
		return model.Holding{}, err
	}
	if h.BoughtAtDate, err = ParseTime(boughtAt); err != nil {
		return model.Holding{}, fmt.Errorf("failed to parse bought_at_date: %w", err)
	}
	if h.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Holding{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return h, nil
}
