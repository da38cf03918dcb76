// Package middleware provides net/http middleware that gates requests on the
// engine's access tokens and role set. It works with any router; the HTTP
// API wires it into chi.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/apsicologia/clinicauth"
)

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity attached by
// [Authenticate].
func IdentityFromContext(ctx context.Context) (*clinicauth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*clinicauth.Identity)
	return identity, ok
}

// Authenticate verifies the bearer token and attaches the caller identity to
// the request context. Every failure path produces the same 401 envelope so
// the response does not reveal why the token was rejected.
func Authenticate(engine *clinicauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			identity, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only the listed roles through. It must run after
// [Authenticate]; a request with no identity is rejected as unauthorized,
// not forbidden.
func RequireRole(roles ...clinicauth.Role) func(http.Handler) http.Handler {
	allowed := make(map[clinicauth.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				writeError(w, http.StatusForbidden, "forbidden", "FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHORIZED")
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"code":    code,
	})
}
