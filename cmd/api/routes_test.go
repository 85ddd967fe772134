package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/orderflow-checkout/internal/cart"
	"github.com/joao-fontenele/orderflow-checkout/internal/inventory"
	"github.com/joao-fontenele/orderflow-checkout/internal/orders"
)

func testRouter(t *testing.T, health func(context.Context) error) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service, err := orders.NewService(nil, nil, logger)
	require.NoError(t, err)

	return newRouter(routerDeps{
		orders:    orders.NewHandler(service, "client-key", logger),
		cart:      cart.NewHandler(nil, logger),
		inventory: inventory.NewHandler(nil, logger),
		health:    health,
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := testRouter(t, func(context.Context) error { return nil })

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{method: http.MethodPost, path: "/api/payment/webhook", body: `{}`, want: http.StatusOK},
		{method: http.MethodPost, path: "/api/midtrans/webhook", body: ``, want: http.StatusOK},
		{method: http.MethodGet, path: "/api/midtrans/webhook", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/payment/public-key", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_AuthenticatedRoutesRequireIdentity(t *testing.T) {
	router := testRouter(t, func(context.Context) error { return nil })

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart"},
		{http.MethodDelete, "/api/cart/1"},
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/orders/all"},
		{http.MethodGet, "/api/orders/1"},
		{http.MethodPut, "/api/orders/1/shipping"},
		{http.MethodPost, "/api/payment/pay"},
		{http.MethodGet, "/api/stock"},
		{http.MethodGet, "/api/stock/1"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.method+" "+route.path)
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	router := testRouter(t, func(context.Context) error { return errors.New("db down") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
