package validation

import (
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-valuation/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation/internal/model"
)

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseDateRange reads a start_date/end_date query pair. At least one must be set;
// a missing start means the beginning of time and a missing end means today.
// Both accept YYYY-MM-DD or RFC3339.
func ParseDateRange(startParam, endParam string, today time.Time) (time.Time, time.Time, error) {
	if startParam == "" && endParam == "" {
		return time.Time{}, time.Time{}, &Error{Fields: map[string]string{
			"start_date": "start_date and/or end_date are required",
		}}
	}

	errors := make(map[string]string)

	start := epoch
	if startParam != "" {
		parsed, err := model.ParseDate(startParam)
		if err != nil {
			errors["start_date"] = "start_date must be YYYY-MM-DD"
		}
		start = parsed
	}

	end := model.Day(today)
	if endParam != "" {
		parsed, err := model.ParseDate(endParam)
		if err != nil {
			errors["end_date"] = "end_date must be YYYY-MM-DD"
		}
		end = parsed
	}

	if len(errors) > 0 {
		return time.Time{}, time.Time{}, &Error{Fields: errors}
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date %s is after end_date %s",
			apperrors.ErrInvalidDateRange, model.FormatDate(start), model.FormatDate(end))
	}

	return start, end, nil
}
