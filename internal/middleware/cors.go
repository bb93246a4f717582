package middleware

import (
	"net/http"
	"strings"

	"lab-backend/internal/config"

	"github.com/rs/cors"
)

// CORSOptions builds the browser access policy of the API from the server config.
// The request id header is always both allowed and exposed.
func CORSOptions(cfg *config.Config) cors.Options {
	return cors.Options{
		AllowedOrigins:   cfg.Server.CorsAllowedOrigins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   withHeader(cfg.Server.CorsAllowedHeaders, RequestIDHeader),
		ExposedHeaders:   withHeader(cfg.Server.CorsExposedHeaders, RequestIDHeader),
		AllowCredentials: cfg.Server.CorsAllowCredentials,
		MaxAge:           cfg.Server.CorsMaxAgeSeconds,
	}
}

func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	return cors.New(CORSOptions(cfg)).Handler
}

// withHeader appends h unless it is already listed, compared case-insensitively
func withHeader(headers []string, h string) []string {
	for _, existing := range headers {
		if strings.EqualFold(existing, h) {
			return headers
		}
	}
	return append(append([]string(nil), headers...), h)
}
