package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation/internal/model"
)

// PortfolioBuilder provides a fluent interface for creating test portfolios.
//
// Example usage:
//
//	// Simple creation with defaults
//	portfolio := testutil.NewPortfolio().Build(t, db)
//
//	// Customized portfolio
//	portfolio := testutil.NewPortfolio().
//	    WithOwner("user-1").
//	    WithName("Custom Portfolio").
//	    Build(t, db)
type PortfolioBuilder struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
}

// NewPortfolio creates a PortfolioBuilder with sensible defaults.
func NewPortfolio() *PortfolioBuilder {
	return &PortfolioBuilder{
		ID:          MakeID(),
		OwnerID:     DefaultUserID,
		Name:        MakePortfolioName("Test Portfolio"),
		Description: "Test description",
		CreatedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WithID sets a custom ID.
func (b *PortfolioBuilder) WithID(id string) *PortfolioBuilder {
	b.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *PortfolioBuilder) WithOwner(ownerID string) *PortfolioBuilder {
	b.OwnerID = ownerID
	return b
}

// WithName sets a custom name.
func (b *PortfolioBuilder) WithName(name string) *PortfolioBuilder {
	b.Name = name
	return b
}

// WithCreatedAt sets the creation timestamp.
func (b *PortfolioBuilder) WithCreatedAt(createdAt time.Time) *PortfolioBuilder {
	b.CreatedAt = createdAt
	return b
}

// Build creates the portfolio in the database and returns it.
func (b *PortfolioBuilder) Build(t *testing.T, db *sql.DB) model.Portfolio {
	t.Helper()

	query := `
		INSERT INTO portfolio (id, owner_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.OwnerID, b.Name, b.Description, b.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	if err != nil {
		t.Fatalf("Failed to create test portfolio: %v", err)
	}

	return model.Portfolio{
		ID:          b.ID,
		OwnerID:     b.OwnerID,
		Name:        b.Name,
		Description: b.Description,
		CreatedAt:   b.CreatedAt.UTC(),
	}
}

// CreatePortfolio creates a portfolio owned by the default test user.
func CreatePortfolio(t *testing.T, db *sql.DB, name string) model.Portfolio {
	t.Helper()
	return NewPortfolio().WithName(name).Build(t, db)
}

// HoldingBuilder provides a fluent interface for creating test holdings.
// It writes only the holding row; snapshots are left untouched.
//
// Example usage:
//
//	testutil.NewHolding(portfolio.ID, "AAPL").WithShares("10").Build(t, db)
type HoldingBuilder struct {
	ID            string
	PortfolioID   string
	Symbol        string
	Shares        decimal.Decimal
	BoughtAtPrice decimal.Decimal
	BoughtAtDate  time.Time
}

// NewHolding creates a HoldingBuilder with sensible defaults.
func NewHolding(portfolioID, symbol string) *HoldingBuilder {
	return &HoldingBuilder{
		ID:            MakeID(),
		PortfolioID:   portfolioID,
		Symbol:        symbol,
		Shares:        decimal.NewFromInt(10),
		BoughtAtPrice: decimal.NewFromInt(100),
		BoughtAtDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

// WithShares sets the share count from a decimal string.
func (b *HoldingBuilder) WithShares(shares string) *HoldingBuilder {
	b.Shares = decimal.RequireFromString(shares)
	return b
}

// WithPrice sets the purchase price from a decimal string.
func (b *HoldingBuilder) WithPrice(price string) *HoldingBuilder {
	b.BoughtAtPrice = decimal.RequireFromString(price)
	return b
}

// WithDate sets the purchase date.
func (b *HoldingBuilder) WithDate(date time.Time) *HoldingBuilder {
	b.BoughtAtDate = model.Day(date)
	return b
}

// Build creates the holding in the database and returns it.
func (b *HoldingBuilder) Build(t *testing.T, db *sql.DB) model.Holding {
	t.Helper()

	createdAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	query := `
		INSERT INTO holding (id, portfolio_id, symbol, shares, bought_at_price, bought_at_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		b.ID,
		b.PortfolioID,
		b.Symbol,
		b.Shares.String(),
		b.BoughtAtPrice.String(),
		model.FormatDate(b.BoughtAtDate),
		createdAt.Format("2006-01-02T15:04:05.000000Z07:00"),
	)
	if err != nil {
		t.Fatalf("Failed to create test holding: %v", err)
	}

	return model.Holding{
		ID:            b.ID,
		PortfolioID:   b.PortfolioID,
		Symbol:        b.Symbol,
		Shares:        b.Shares,
		BoughtAtPrice: b.BoughtAtPrice,
		BoughtAtDate:  b.BoughtAtDate,
		CreatedAt:     createdAt,
	}
}
