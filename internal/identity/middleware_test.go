package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
)

func TestRequire(t *testing.T) {
	var got domain.Identity
	var seen bool
	handler := Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejects missing user id", func(t *testing.T) {
		seen = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, seen)
	})

	t.Run("defaults role to user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, "u-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, seen)
		assert.Equal(t, domain.Identity{ID: "u-1", Role: "user"}, got)
		assert.False(t, got.IsAdmin())
	})

	t.Run("passes admin role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, "a-1")
		req.Header.Set(HeaderUserRole, "Admin")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.True(t, got.IsAdmin())
	})
}
