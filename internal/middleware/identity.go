package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const usernameKey contextKey = "username"

// IdentityHeader carries the caller-asserted username. There is no
// credential check behind it; a real deployment swaps this middleware for
// one that verifies credentials without touching the handlers.
const IdentityHeader = "X-Username"

// Identity extracts the trimmed username header into the request context.
// Handlers that require identity call UsernameFromContext and treat an
// empty value as unauthenticated; the middleware itself never rejects, so
// public endpoints (login, health) pass through untouched.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(IdentityHeader))
		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UsernameFromContext returns the asserted identity, or "" when absent.
func UsernameFromContext(ctx context.Context) string {
	if username, ok := ctx.Value(usernameKey).(string); ok {
		return username
	}
	return ""
}
