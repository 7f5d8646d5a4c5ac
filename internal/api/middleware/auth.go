package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/inthetow/backend/pkg/auth"
)

type userIDKey struct{}

// UserIDFromContext returns the authenticated user id
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// WithUserID stores an authenticated user id on ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// TokenValidator checks bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(tokens TokenValidator) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				unauthorized(w, "authentication required")
				return
			}

			claims, err := tokens.Validate(strings.TrimSpace(token))
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			next(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		}
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"kind": "UNAUTHORIZED", "message": message},
	})
}
