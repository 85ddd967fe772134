// Package identity carries the caller identity asserted by the upstream
// authentication proxy. Credentials are never re-verified here.
package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	defaultRole = "user"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(domain.Identity)
	return id, ok
}

// Require rejects requests without an asserted user id.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
		if role == "" {
			role = defaultRole
		}

		ctx := WithIdentity(r.Context(), domain.Identity{ID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
