// Package middleware provides HTTP middleware for the chat API.
package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/ashureev/healthchat/internal/identity"
)

var allowedHeaders = strings.Join([]string{"Content-Type", identity.SessionHeaderName, "X-Request-Id"}, ", ")

// AllowedOrigins derives the CORS allow list from the frontend URL. An
// empty frontend URL in development allows any origin.
func AllowedOrigins(frontendURL string, isDev bool) []string {
	frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	switch {
	case frontendURL != "":
		return []string{frontendURL}
	case isDev:
		return []string{"*"}
	default:
		return nil
	}
}

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			explicit := origin != "" && slices.Contains(allowedOrigins, origin)

			if origin != "" && (wildcard || explicit) {
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				// Credentials only for explicit origins, never for wildcard echoes.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
