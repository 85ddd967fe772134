package cart

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/identity"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CartLine), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartEntry, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CartEntry), args.Error(1)
}

func (m *MockStore) Remove(ctx context.Context, userID string, productID int64) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockStore) Clear(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func newRouter(store Store) http.Handler {
	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(identity.Require)
	r.Get("/cart", h.HandleList)
	r.Post("/cart", h.HandleSet)
	r.Delete("/cart", h.HandleClear)
	r.Delete("/cart/{productId}", h.HandleRemove)
	return r
}

func send(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(identity.HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Set(t *testing.T) {
	store := new(MockStore)
	store.On("Set", mock.Anything, "user-1", int64(1), 2).Return(&domain.CartEntry{UserID: "user-1", ProductID: 1, Quantity: 2}, nil)
	store.On("Set", mock.Anything, "user-1", int64(1), 0).Return(nil, nil)
	store.On("Set", mock.Anything, "user-1", int64(1), 99).
		Return(nil, &domain.ValidationError{Field: "quantity", Reason: "quantity for Laptop exceeds stock (5)"})
	store.On("Set", mock.Anything, "user-1", int64(404), 1).Return(nil, domain.ErrNotFound)
	router := newRouter(store)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "add", body: `{"product_id":1,"quantity":2}`, want: http.StatusOK},
		{name: "zero removes", body: `{"product_id":1,"quantity":0}`, want: http.StatusOK},
		{name: "exceeds stock", body: `{"product_id":1,"quantity":99}`, want: http.StatusBadRequest},
		{name: "unknown product", body: `{"product_id":404,"quantity":1}`, want: http.StatusNotFound},
		{name: "missing quantity", body: `{"product_id":1}`, want: http.StatusBadRequest},
		{name: "malformed", body: `{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(router, http.MethodPost, "/cart", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_RemoveAndClear(t *testing.T) {
	store := new(MockStore)
	store.On("Remove", mock.Anything, "user-1", int64(3)).Return(nil)
	store.On("Clear", mock.Anything, "user-1").Return(nil)
	router := newRouter(store)

	assert.Equal(t, http.StatusOK, send(router, http.MethodDelete, "/cart/3", "").Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodDelete, "/cart/x", "").Code)
	assert.Equal(t, http.StatusOK, send(router, http.MethodDelete, "/cart", "").Code)
	store.AssertExpectations(t)
}

func TestHandler_List(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, "user-1").Return([]domain.CartLine{
		{Entry: domain.CartEntry{UserID: "user-1", ProductID: 1, Quantity: 2}, Product: domain.Product{ID: 1, Name: "Laptop"}},
	}, nil)

	rec := send(newRouter(store), http.MethodGet, "/cart", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"quantity":2`)
}
