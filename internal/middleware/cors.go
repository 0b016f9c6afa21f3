// Package middleware provides HTTP middleware for the gateway.
package middleware

import (
	"net/http"
	"strings"
)

// AllowedOrigins builds the CORS allow-list. In development every origin is
// allowed; otherwise only the configured frontend, plus browser-extension
// origins which the extension channel relies on.
func AllowedOrigins(frontendURL string, isDev bool) []string {
	if isDev || frontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimSuffix(frontendURL, "/"), "chrome-extension://*"}
}

func originAllowed(pattern, origin string) bool {
	if pattern == "*" || pattern == origin {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return origin != "" && strings.HasPrefix(origin, prefix)
	}
	return false
}

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			explicit := false
			for _, o := range allowedOrigins {
				if originAllowed(o, origin) {
					allowed = true
					explicit = o != "*"
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				// Credentials only for explicit origins.
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
