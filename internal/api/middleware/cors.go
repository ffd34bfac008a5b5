package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// NewCORS builds the CORS policy for the browser dashboard. Credentials are only allowed
// for an explicit origin list; a "*" entry opens the API to any origin without them.
func NewCORS(allowedOrigins []string) *cors.Cors {
	wildcard := slices.Contains(allowedOrigins, "*")

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", UserIDHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
