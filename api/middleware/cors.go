package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns the proxy's permissive cross-origin policy. Media is embedded
// from arbitrary journal frontends, so every origin is allowed.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range", "X-Requested-With"},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length", "ETag"},
		MaxAge:         86400,
	}).Handler
}
