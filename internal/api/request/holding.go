package request

import "github.com/shopspring/decimal"

// AddHoldingRequest represents the request body for buying shares into a portfolio.
// Shares and BoughtAtPrice accept JSON numbers or decimal strings.
// BoughtAtDate is YYYY-MM-DD and defaults to today when empty.
type AddHoldingRequest struct {
	Symbol        string          `json:"symbol"`
	Shares        decimal.Decimal `json:"shares"`
	BoughtAtPrice decimal.Decimal `json:"boughtAtPrice"`
	BoughtAtDate  string          `json:"boughtAtDate"`
}
