package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/autoassist/car-buying-assistant/internal/auth"
	"github.com/autoassist/car-buying-assistant/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	PrincipalContextKey contextKey = "principal"

	// SessionHeader carries a guest's session token on every request
	// after the creating call returned it.
	SessionHeader = "X-Session-Id"
)

// Identity resolves the principal a request acts as
type Identity struct {
	authService *auth.Service
}

// NewIdentity creates a new identity middleware
func NewIdentity(authService *auth.Service) *Identity {
	return &Identity{
		authService: authService,
	}
}

// Resolve derives a principal from the request credentials and stores
// it in the request context. A valid bearer token yields a user
// principal. An invalid bearer token fails closed to a guest with no
// session, even if a session header is also present. Without a bearer
// token the session header, possibly empty, identifies a guest.
func (m *Identity) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principal models.Principal

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			claims, err := m.authService.ValidateToken(authHeader)
			if err != nil {
				principal = models.GuestPrincipal("")
			} else {
				principal = models.UserPrincipal(claims.UserID)
			}
		} else {
			principal = models.GuestPrincipal(r.Header.Get(SessionHeader))
		}

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests whose principal is not an authenticated
// user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r.Context())
		if !ok || !principal.IsUser() {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPrincipal extracts the resolved principal from a request context
func GetPrincipal(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(PrincipalContextKey).(models.Principal)
	return principal, ok
}

// writeError writes the uniform error envelope from middleware, where
// the handlers' response helpers are not importable.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
