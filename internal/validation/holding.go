package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/ndewijer/portfolio-valuation/internal/api/request"
	"github.com/ndewijer/portfolio-valuation/internal/model"
	"github.com/ndewijer/portfolio-valuation/internal/service"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.\-^=]{1,20}$`)

// ValidateAddHolding checks a purchase request and converts it to service input.
// An empty date means today. Whether the date lies in the future is decided by the
// service against its own clock.
func ValidateAddHolding(req request.AddHoldingRequest, today time.Time) (service.AddHoldingInput, error) {
	errors := make(map[string]string)

	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		errors["symbol"] = "symbol is required"
	} else if !symbolPattern.MatchString(symbol) {
		errors["symbol"] = "symbol must be 1-20 letters, digits or . - ^ ="
	}

	if !req.Shares.IsPositive() {
		errors["shares"] = "shares must be positive"
	}
	if !req.BoughtAtPrice.IsPositive() {
		errors["boughtAtPrice"] = "boughtAtPrice must be positive"
	}

	boughtAt := model.Day(today)
	if req.BoughtAtDate != "" {
		parsed, err := time.Parse(model.DateLayout, req.BoughtAtDate)
		if err != nil {
			errors["boughtAtDate"] = "boughtAtDate must be YYYY-MM-DD"
		} else {
			boughtAt = parsed
		}
	}

	if len(errors) > 0 {
		return service.AddHoldingInput{}, &Error{Fields: errors}
	}

	return service.AddHoldingInput{
		Symbol:        symbol,
		Shares:        req.Shares,
		BoughtAtPrice: req.BoughtAtPrice,
		BoughtAtDate:  boughtAt,
	}, nil
}
