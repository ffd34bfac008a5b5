package apperrors

import "errors"

// Domain entity errors represent missing entities in the system.
var (
	// ErrPortfolioNotFound indicates that a portfolio with the given ID does not exist
	// or is not owned by the caller.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrSnapshotNotFound indicates no snapshot row for a portfolio and date combination.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Upstream errors represent failures of the external price providers.
var (
	// ErrUpstreamUnavailable indicates that a price provider could not supply a current quote
	// (network failure, non-2xx status, timeout, or a malformed or missing price).
	// Callers should surface it as a transient condition and let the user retry.
	ErrUpstreamUnavailable = errors.New("price data unavailable, try again later")

	// ErrNoHistoricalData indicates that the historical provider returned no usable points
	// for the requested symbol and window.
	ErrNoHistoricalData = errors.New("no historical data for symbol")
)

// Validation errors represent invalid input that callers can correct.
var (
	// ErrInvalidDateRange indicates that the start date is after the end date.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidDate indicates a missing, malformed, or out-of-range date.
	ErrInvalidDate = errors.New("invalid date")

	ErrInvalidSymbol      = errors.New("symbol is required")
	ErrInvalidPortfolioID = errors.New("portfolio ID is required")
	ErrInvalidUUID        = errors.New("invalid UUID format")
	ErrInvalidQuantity    = errors.New("shares and price must be positive")
	ErrMissingUser        = errors.New("user identity is required")
)

// Data integrity errors represent inconsistencies or corruption in stored data.
var (
	// ErrInconsistentAggregate indicates that a stored snapshot breakdown could not be decoded
	// into numeric entries. The row is never silently coerced to zero.
	ErrInconsistentAggregate = errors.New("snapshot aggregate is inconsistent")

	// ErrInsufficientChartData indicates that a chart needs more points than are available.
	ErrInsufficientChartData = errors.New("not enough data points to render chart")
)
