// Package auth provides optional bearer-token protection for the admin
// API. Probes, metrics, and the read-only status surface stay public so
// dashboards and orchestration keep working without credentials.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration. Enabled without a token is
// treated as misconfiguration by the caller, not here.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration. The
// SSE stream carries the same document as /api/v1/status and the
// dashboard's EventSource cannot attach a bearer token.
var exemptPaths = map[string]bool{
	"/":                     true,
	"/app.js":               true,
	"/styles.css":           true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/status":        true,
	"/api/v1/stream/status": true,
}

// isExempt reports whether the path never requires a token.
func isExempt(path string) bool {
	return exemptPaths[path]
}

// Middleware returns an HTTP middleware that enforces bearer-token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !tokenMatches(r.Header.Get("Authorization"), cfg.Token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tokenMatches checks an Authorization header against the configured
// token in constant time. A header without the Bearer scheme never
// matches.
func tokenMatches(header, want string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}
