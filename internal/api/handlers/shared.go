// Package handlers implements the HTTP endpoints of the valuation API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ndewijer/portfolio-valuation/internal/api/middleware"
	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/validation"
)

const maxBodyBytes = 1 << 20

// parseJSON decodes the request body into T, rejecting unknown fields and trailing data.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	if r.Body == nil {
		return req, errors.New("request body is empty")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if decoder.More() {
		return req, errors.New("request body must contain a single JSON object")
	}
	return req, nil
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrPortfolioNotFound),
		errors.Is(err, apperrors.ErrSnapshotNotFound),
		errors.Is(err, apperrors.ErrInsufficientChartData):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrNoHistoricalData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrInvalidDate),
		errors.Is(err, apperrors.ErrInvalidSymbol),
		errors.Is(err, apperrors.ErrInvalidQuantity),
		errors.Is(err, apperrors.ErrInvalidUUID),
		errors.Is(err, apperrors.ErrInvalidPortfolioID),
		errors.Is(err, apperrors.ErrMissingUser):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the error envelope for err. Known sentinel errors use their
// own message; anything else is reported as fallback with err as details.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		response.RespondError(w, http.StatusBadRequest, "validation failed", vErr.Fields)
		return
	}

	status := statusFor(err)
	message := fallback
	for _, sentinel := range []error{
		apperrors.ErrPortfolioNotFound,
		apperrors.ErrSnapshotNotFound,
		apperrors.ErrInsufficientChartData,
		apperrors.ErrUpstreamUnavailable,
		apperrors.ErrNoHistoricalData,
		apperrors.ErrInvalidDateRange,
		apperrors.ErrInvalidDate,
		apperrors.ErrInvalidSymbol,
		apperrors.ErrInvalidQuantity,
		apperrors.ErrInconsistentAggregate,
	} {
		if errors.Is(err, sentinel) {
			message = sentinel.Error()
			break
		}
	}

	response.RespondError(w, status, message, err.Error())
}

// userID returns the caller set by middleware.RequireUser.
func userID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
