package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/lifecycle"
	"github.com/joao-fontenele/orderflow-checkout/internal/payment"
)

var meter = otel.Meter("orders")

const (
	defaultGatewayTimeout = 10 * time.Second
	dedupeKeyPrefix       = "payment:notification:"
)

// Store is the persistence the service drives. OrderRepository implements it.
type Store interface {
	Checkout(ctx context.Context, userID string, shipping domain.Shipping, now time.Time) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateShipping(ctx context.Context, id int64, s domain.Shipping, createdAfter time.Time) (*domain.Order, error)
	Transition(ctx context.Context, id int64, ev lifecycle.Event, now time.Time) (*TransitionResult, error)
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

type Gateway interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Deduper remembers notifications that were already reconciled. It only
// saves work: correctness rests on the locked transition.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type Outcome string

const (
	OutcomeNoReference        Outcome = "ignored_no_reference"
	OutcomeUnrecognizedStatus Outcome = "ignored_unrecognized_status"
	OutcomeOrderNotFound      Outcome = "ignored_order_not_found"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomePending            Outcome = "pending_noop"
	OutcomeNoop               Outcome = "noop"
	OutcomeApplied            Outcome = "applied"
)

// NotificationResult reports what a gateway notification did.
type NotificationResult struct {
	Outcome Outcome
	OrderID int64
	Status  domain.OrderStatus
}

type Service struct {
	store          Store
	gateway        Gateway
	publisher      Publisher
	deduper        Deduper
	now            func() time.Time
	gatewayTimeout time.Duration
	logger         *slog.Logger

	notifications   metric.Int64Counter
	stockDecrements metric.Int64Counter
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithDeduper(d Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithGatewayTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gatewayTimeout = d
		}
	}
}

func NewService(store Store, gateway Gateway, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		store:          store,
		gateway:        gateway,
		now:            time.Now,
		gatewayTimeout: defaultGatewayTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.notifications, err = meter.Int64Counter("orderflow.payment.notifications",
		metric.WithDescription("Gateway notifications by reconciliation outcome"),
	)
	if err != nil {
		return nil, err
	}

	s.stockDecrements, err = meter.Int64Counter("orderflow.stock.decrements",
		metric.WithDescription("Units removed from stock by paid orders"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) Checkout(ctx context.Context, caller domain.Identity, shipping domain.Shipping) (*domain.Order, error) {
	order, err := s.store.Checkout(ctx, caller.ID, shipping, s.now())
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.publish(ctx, domain.TopicOrderCreated, order.ID, domain.OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     order.Items,
		Total:     order.Total,
		Timestamp: order.CreatedAt,
	})

	s.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total", order.Total.String())
	return order, nil
}

func (s *Service) ListMine(ctx context.Context, caller domain.Identity) ([]domain.Order, error) {
	return s.store.ListByUser(ctx, caller.ID)
}

func (s *Service) ListAll(ctx context.Context, caller domain.Identity) ([]domain.Order, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("list all orders: %w", domain.ErrForbidden)
	}
	return s.store.ListAll(ctx)
}

// Get returns an order to its owner or to an admin.
func (s *Service) Get(ctx context.Context, caller domain.Identity, id int64) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.UserID != caller.ID && !caller.IsAdmin() {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrForbidden)
	}

	return order, nil
}

// UpdateShipping replaces the shipping details of the caller's own pending
// order while it is still inside the payment window.
func (s *Service) UpdateShipping(ctx context.Context, caller domain.Identity, id int64, shipping domain.Shipping) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.UserID != caller.ID {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrForbidden)
	}

	if order.Status != domain.OrderStatusPending {
		return nil, &domain.StateError{OrderID: order.ID, Status: order.Status}
	}

	shipping = shipping.Trimmed()
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.ensurePayable(ctx, order, now); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateShipping(ctx, id, shipping, now.Add(-lifecycle.Window))
	if err != nil {
		return nil, err
	}

	if updated == nil {
		// A notification or the window got there between the read and the write.
		order, err = s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.ensurePayable(ctx, order, now); err != nil {
			return nil, err
		}
		return nil, &domain.StateError{OrderID: id, Status: order.Status}
	}

	s.logger.Info("shipping updated", "order_id", id)
	return updated, nil
}

// InitiatePayment opens a gateway session for a pending order. A failed
// gateway call leaves the order untouched so the caller can retry.
func (s *Service) InitiatePayment(ctx context.Context, caller domain.Identity, orderID int64) (*payment.Session, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != domain.OrderStatusPending {
		return nil, &domain.StateError{OrderID: order.ID, Status: order.Status}
	}

	if err := order.Shipping.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.ensurePayable(ctx, order, now); err != nil {
		return nil, err
	}

	req := payment.NewSessionRequest(order, now)

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.gateway.CreateSession(gwCtx, req)
	if err != nil {
		s.logger.Warn("payment session failed", "error", err, "order_id", order.ID, "attempt_id", req.AttemptID)
		if !errors.Is(err, domain.ErrGateway) {
			err = fmt.Errorf("%w: %w", domain.ErrGateway, err)
		}
		return nil, err
	}

	s.logger.Info("payment session created",
		"order_id", order.ID,
		"attempt_id", session.AttemptID,
		"user_id", caller.ID,
		"remaining", req.Remaining(now).String(),
	)
	return session, nil
}

// HandleNotification reconciles one gateway notification. Unknown or
// unusable notifications are acknowledged without effect; only a
// persistence failure is returned as an error.
func (s *Service) HandleNotification(ctx context.Context, body []byte) (NotificationResult, error) {
	n := payment.ParseNotification(body)

	if !n.HasOrder {
		s.logger.Warn("notification without usable order reference", "reference", n.Reference)
		return s.recordOutcome(ctx, NotificationResult{Outcome: OutcomeNoReference}), nil
	}

	res := NotificationResult{OrderID: n.OrderID}

	ev, ok := eventFor(n.Status)
	if !ok {
		s.logger.Warn("notification with unrecognized status", "order_id", n.OrderID, "status", n.RawStatus)
		res.Outcome = OutcomeUnrecognizedStatus
		return s.recordOutcome(ctx, res), nil
	}

	key := dedupeKeyPrefix + n.Reference + ":" + n.Status.String()
	if s.deduper != nil {
		seen, err := s.deduper.Seen(ctx, key)
		if err != nil {
			s.logger.Warn("dedupe lookup failed", "error", err, "key", key)
		} else if seen {
			res.Outcome = OutcomeDuplicate
			return s.recordOutcome(ctx, res), nil
		}
	}

	tr, err := s.transition(ctx, n.OrderID, ev, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("notification for unknown order", "order_id", n.OrderID, "reference", n.Reference)
			res.Outcome = OutcomeOrderNotFound
			return s.recordOutcome(ctx, res), nil
		}
		return NotificationResult{}, fmt.Errorf("reconcile order %d: %w", n.OrderID, err)
	}

	res.Status = tr.Outcome.To
	switch {
	case ev == lifecycle.EventGatewayPending:
		res.Outcome = OutcomePending
	case tr.Outcome.Changed():
		res.Outcome = OutcomeApplied
		s.afterTransition(ctx, tr)
	default:
		res.Outcome = OutcomeNoop
	}

	if s.deduper != nil {
		if err := s.deduper.Mark(ctx, key); err != nil {
			s.logger.Warn("dedupe mark failed", "error", err, "key", key)
		}
	}

	s.logger.Info("notification reconciled",
		"order_id", n.OrderID,
		"reference", n.Reference,
		"gateway_status", n.RawStatus,
		"outcome", string(res.Outcome),
		"status", res.Status,
	)
	return s.recordOutcome(ctx, res), nil
}

// ExpireStale sweeps up to limit pending orders whose window has elapsed.
// It returns how many it moved to expired.
func (s *Service) ExpireStale(ctx context.Context, limit int) (int, error) {
	now := s.now()
	ids, err := s.store.ListExpirable(ctx, now.Add(-lifecycle.Window), limit)
	if err != nil {
		return 0, fmt.Errorf("list expirable orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		tr, err := s.transition(ctx, id, lifecycle.EventWindowElapsed, now)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return expired, fmt.Errorf("expire order %d: %w", id, err)
		}
		if tr.Outcome.Changed() {
			expired++
			s.afterTransition(ctx, tr)
		}
	}

	return expired, nil
}

// ensurePayable rejects a non-pending order and expires a pending one whose
// window has elapsed.
func (s *Service) ensurePayable(ctx context.Context, order *domain.Order, now time.Time) error {
	if order.Status != domain.OrderStatusPending {
		return &domain.StateError{OrderID: order.ID, Status: order.Status}
	}

	if !lifecycle.Expired(order.CreatedAt, now) {
		return nil
	}

	tr, err := s.transition(ctx, order.ID, lifecycle.EventWindowElapsed, now)
	if err != nil {
		return fmt.Errorf("expire order %d: %w", order.ID, err)
	}

	if tr.Outcome.Changed() {
		s.afterTransition(ctx, tr)
	}

	if tr.Outcome.To != domain.OrderStatusExpired {
		return &domain.StateError{OrderID: order.ID, Status: tr.Outcome.To}
	}

	return fmt.Errorf("order %d: %w", order.ID, domain.ErrExpired)
}

// transition runs a locked transition, retrying once when the database
// aborts it as a serialization failure or deadlock.
func (s *Service) transition(ctx context.Context, id int64, ev lifecycle.Event, now time.Time) (*TransitionResult, error) {
	tr, err := s.store.Transition(ctx, id, ev, now)
	if err != nil && IsRetryable(err) {
		s.logger.Warn("transition aborted, retrying", "error", err, "order_id", id, "event", ev.String())
		tr, err = s.store.Transition(ctx, id, ev, now)
	}
	return tr, err
}

func (s *Service) afterTransition(ctx context.Context, tr *TransitionResult) {
	order := tr.Order

	if tr.Outcome.DecrementStock {
		for _, item := range order.Items {
			s.stockDecrements.Add(ctx, int64(item.Quantity),
				metric.WithAttributes(attribute.Int64("product_id", item.ProductID)))
		}
		s.logger.Info("stock decremented", "order_id", order.ID, "items", len(order.Items))
	}

	s.publish(ctx, domain.TopicOrderStatus, order.ID, domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Email:     tr.CustomerEmail,
		From:      tr.Outcome.From,
		To:        tr.Outcome.To,
		Total:     order.Total,
		PaidAt:    order.PaidAt,
		Timestamp: s.now().UTC(),
	})

	s.logger.Info("order status changed", "order_id", order.ID, "from", tr.Outcome.From, "to", tr.Outcome.To)
}

func (s *Service) publish(ctx context.Context, topic string, orderID int64, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, strconv.FormatInt(orderID, 10), event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "topic", topic, "order_id", orderID)
	}
}

func (s *Service) recordOutcome(ctx context.Context, res NotificationResult) NotificationResult {
	s.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(res.Outcome))))
	return res
}

func eventFor(status payment.NotificationStatus) (lifecycle.Event, bool) {
	switch status {
	case payment.StatusPaid:
		return lifecycle.EventSettled, true
	case payment.StatusExpired:
		return lifecycle.EventGatewayExpired, true
	case payment.StatusCancelled:
		return lifecycle.EventCancelled, true
	case payment.StatusPending:
		return lifecycle.EventGatewayPending, true
	}
	return 0, false
}
