package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/ndewijer/portfolio-valuation/internal/api/request"
)

const (
	maxPortfolioName        = 100
	maxPortfolioDescription = 500
)

// ValidateCreatePortfolio checks the name and description of a new portfolio.
// Lengths are counted in characters, not bytes.
func ValidateCreatePortfolio(req request.CreatePortfolioRequest) error {
	fields := make(map[string]string)

	switch name := strings.TrimSpace(req.Name); {
	case name == "":
		fields["name"] = "name is required"
	case utf8.RuneCountInString(name) > maxPortfolioName:
		fields["name"] = "name must be 100 characters or less"
	}

	if utf8.RuneCountInString(req.Description) > maxPortfolioDescription {
		fields["description"] = "description must be 500 characters or less"
	}

	if len(fields) > 0 {
		return &Error{Fields: fields}
	}
	return nil
}
