package httpapi

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORS builds the cross-origin policy. "*" allows every origin and an
// empty list rejects all cross-origin requests.
func NewCORS(allowedOrigins []string) *cors.Cors {
	options := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         600,
	}
	switch {
	case contains(allowedOrigins, "*"):
		options.AllowedOrigins = []string{"*"}
	case len(allowedOrigins) == 0:
		options.AllowOriginFunc = func(string) bool { return false }
	default:
		options.AllowedOrigins = allowedOrigins
	}
	return cors.New(options)
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}
