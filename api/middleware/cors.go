package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/helmdeck/notify-agent/pkg/config"
)

// CORS returns middleware that applies the console's allowed origin
// policy. The agent listens on loopback, the console may be served
// from a different local port.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           cfg.MaxAgeSeconds,
	}).Handler
}
