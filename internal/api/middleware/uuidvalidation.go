// Package middleware holds the chi middleware of the valuation API.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-valuation/internal/api/response"
	"github.com/ndewijer/portfolio-valuation/internal/validation"
)

// PortfolioIDParam is the route parameter holding a portfolio id.
const PortfolioIDParam = "uuid"

// ValidateUUIDMiddleware rejects portfolio routes whose {uuid} is not a UUID.
var ValidateUUIDMiddleware = RequireUUIDParam(PortfolioIDParam)

// RequireUUIDParam returns middleware answering 400 unless the named route parameter is
// a well formed UUID. Mount it inside the route that declares the parameter:
//
//	r.Route("/{uuid}", func(r chi.Router) {
//	    r.Use(middleware.RequireUUIDParam("uuid"))
//	    r.Get("/holdings", handler.Holdings)
//	})
func RequireUUIDParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := chi.URLParam(r, name)
			if value == "" {
				response.RespondError(w, http.StatusBadRequest, "valid UUID is required", name+" is missing")
				return
			}
			if err := validation.ValidateUUID(value); err != nil {
				response.RespondError(w, http.StatusBadRequest, "invalid UUID format", err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
