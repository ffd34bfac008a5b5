package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio represents a portfolio from the database.
type Portfolio struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Holding is one purchase of shares of a symbol into a portfolio.
// Holdings are immutable once created.
type Holding struct {
	ID            string          `json:"id"`
	PortfolioID   string          `json:"portfolioId"`
	Symbol        string          `json:"symbol"`
	Shares        decimal.Decimal `json:"shares"`
	BoughtAtPrice decimal.Decimal `json:"boughtAtPrice"`
	BoughtAtDate  time.Time       `json:"boughtAtDate"` // UTC calendar day
	CreatedAt     time.Time       `json:"createdAt"`
}
