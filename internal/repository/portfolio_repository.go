package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/database"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// PortfolioRepository provides data access methods for the portfolio table.
type PortfolioRepository struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect database.Dialect
}

// NewPortfolioRepository creates a new PortfolioRepository with the provided database connection.
func NewPortfolioRepository(db *sql.DB, dialect database.Dialect) *PortfolioRepository {
	return &PortfolioRepository{db: db, dialect: dialect}
}

// WithTx returns a new PortfolioRepository scoped to the provided transaction.
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{
		db:      r.db,
		tx:      tx,
		dialect: r.dialect,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *PortfolioRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertPortfolio stores a new portfolio.
func (r *PortfolioRepository) InsertPortfolio(ctx context.Context, p model.Portfolio) error {
	query := `
		INSERT INTO portfolio (id, owner_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, r.dialect.Rebind(query),
		p.ID,
		p.OwnerID,
		p.Name,
		p.Description,
		formatTimestamp(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}

	return nil
}

// GetPortfolioOnID retrieves a portfolio by ID.
// Returns ErrPortfolioNotFound if no portfolio with the given ID exists.
func (r *PortfolioRepository) GetPortfolioOnID(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	query := `
		SELECT id, owner_id, name, description, created_at
		FROM portfolio
		WHERE id = ?
	`

	p, err := scanPortfolio(r.getQuerier().QueryRowContext(ctx, r.dialect.Rebind(query), portfolioID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to query portfolio: %w", err)
	}

	return p, nil
}

// GetPortfoliosByOwner retrieves all portfolios of one owner ordered by creation time.
// Returns an empty slice if the owner has none.
func (r *PortfolioRepository) GetPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	query := `
		SELECT id, owner_id, name, description, created_at
		FROM portfolio
		WHERE owner_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, r.dialect.Rebind(query), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios table: %w", err)
	}
	defer rows.Close()

	portfolios := []model.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio table results: %w", err)
		}
		portfolios = append(portfolios, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios table: %w", err)
	}

	return portfolios, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (model.Portfolio, error) {
	var p model.Portfolio
	var createdAt string

	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &createdAt); err != nil {
		return model.Portfolio{}, err
	}

	var err error
	if p.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return p, nil
}
