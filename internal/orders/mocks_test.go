package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/lifecycle"
	"github.com/joao-fontenele/orderflow-checkout/internal/payment"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Checkout(ctx context.Context, userID string, shipping domain.Shipping, now time.Time) (*domain.Order, error) {
	args := m.Called(ctx, userID, shipping, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockStore) UpdateShipping(ctx context.Context, id int64, s domain.Shipping, createdAfter time.Time) (*domain.Order, error) {
	args := m.Called(ctx, id, s, createdAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockStore) Transition(ctx context.Context, id int64, ev lifecycle.Event, now time.Time) (*TransitionResult, error) {
	args := m.Called(ctx, id, ev, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransitionResult), args.Error(1)
}

func (m *MockStore) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

type MockDeduper struct {
	mock.Mock
}

func (m *MockDeduper) Seen(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduper) Mark(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

var (
	testNow     = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	testUser    = domain.Identity{ID: "user-1", Role: "user"}
	testAdmin   = domain.Identity{ID: "admin-1", Role: domain.RoleAdmin}
	testAddress = domain.Shipping{RecipientName: "Budi", Phone: "0812", Address: "Jl. Merdeka 1", PostalCode: "10110"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingOrder(id int64, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID:     id,
		UserID: testUser.ID,
		Items: []domain.OrderItem{
			{ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(90)},
		},
		Total:     decimal.NewFromInt(180),
		Status:    domain.OrderStatusPending,
		Shipping:  testAddress,
		CreatedAt: createdAt,
	}
}

// transitioned is what the store returns after applying ev to order.
func transitioned(order *domain.Order, ev lifecycle.Event) *TransitionResult {
	out := lifecycle.Next(order.Status, ev)
	after := *order
	after.Status = out.To
	if out.StampPaidAt && after.PaidAt == nil {
		paid := testNow
		after.PaidAt = &paid
	}
	return &TransitionResult{Order: &after, Outcome: out}
}

func newTestService(t *testing.T, store Store, gw Gateway, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc, err := NewService(store, gw, discardLogger(), opts...)
	require.NoError(t, err)
	return svc
}
