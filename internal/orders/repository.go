package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/inventory"
	"github.com/joao-fontenele/orderflow-checkout/internal/lifecycle"
)

const orderColumns = `id, user_id, total, status, recipient_name, phone, address, postal_code, created_at, paid_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// TransitionResult is the order as left by Transition. StockLeft holds the
// post-decrement stock per product when the transition sold the items.
// CustomerEmail is the owner's profile email, empty when none is on file.
type TransitionResult struct {
	Order         *domain.Order
	Outcome       lifecycle.Outcome
	StockLeft     map[int64]int
	CustomerEmail string
}

// Checkout turns the user's cart into a pending order and empties the cart
// in one transaction.
func (r *OrderRepository) Checkout(ctx context.Context, userID string, shipping domain.Shipping, now time.Time) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	lines, err := lockCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	defaults, err := profileDefaults(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(userID, lines, shipping.WithDefaults(defaults), now)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, total, status, recipient_name, phone, address, postal_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`, order.UserID, order.Total, order.Status,
		nullString(order.Shipping.RecipientName), nullString(order.Shipping.Phone),
		nullString(order.Shipping.Address), nullString(order.Shipping.PostalCode),
		order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
		`, order.ID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_entries WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

func lockCart(ctx context.Context, tx *sql.Tx, userID string) ([]domain.CartLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT c.user_id, c.product_id, c.quantity,
		       p.id, p.name, p.price, p.discount_percent, p.stock
		FROM cart_entries c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id
		FOR UPDATE OF c
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.Entry.UserID, &l.Entry.ProductID, &l.Entry.Quantity,
			&l.Product.ID, &l.Product.Name, &l.Product.Price, &l.Product.DiscountPercent, &l.Product.Stock); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	return lines, rows.Err()
}

func profileDefaults(ctx context.Context, tx *sql.Tx, userID string) (domain.Shipping, error) {
	var name, phone, address, postal sql.NullString

	err := tx.QueryRowContext(ctx, `
		SELECT default_recipient_name, default_phone, default_address, default_postal_code
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&name, &phone, &address, &postal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Shipping{}, nil
		}
		return domain.Shipping{}, err
	}

	return domain.Shipping{
		RecipientName: name.String,
		Phone:         phone.String,
		Address:       address.String,
		PostalCode:    postal.String,
	}, nil
}

func profileEmail(ctx context.Context, q inventory.Querier, userID string) (string, error) {
	var email sql.NullString
	err := q.QueryRowContext(ctx, `SELECT email FROM profiles WHERE id = $1`, userID).Scan(&email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("load profile email: %w", err)
	}
	return strings.TrimSpace(email.String), nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	if order.Items, err = loadItems(ctx, r.db, id); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[int64]*domain.Order)
	var orderIDs []int64

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// UpdateShipping replaces the shipping fields of a pending order created
// after createdAfter. It returns nil, nil when no such order matched.
func (r *OrderRepository) UpdateShipping(ctx context.Context, id int64, s domain.Shipping, createdAfter time.Time) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET recipient_name = $2, phone = $3, address = $4, postal_code = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6 AND created_at > $7
	`, id, s.RecipientName, s.Phone, s.Address, s.PostalCode, domain.OrderStatusPending, createdAfter)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// Transition applies ev to the order under a row lock. The status check,
// every stock decrement and the status write commit or roll back together,
// and concurrent callers for the same order serialize on the lock.
func (r *OrderRepository) Transition(ctx context.Context, id int64, ev lifecycle.Event, now time.Time) (*TransitionResult, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	if order.Items, err = loadItems(ctx, tx, id); err != nil {
		return nil, err
	}

	res := &TransitionResult{Order: order, Outcome: lifecycle.Next(order.Status, ev)}
	if !res.Outcome.Changed() {
		return res, nil
	}

	if res.Outcome.DecrementStock {
		res.StockLeft = make(map[int64]int, len(order.Items))
		// Items are ordered by product id, so two orders sharing products
		// always lock them in the same order.
		for _, item := range order.Items {
			left, found, err := inventory.DecrementClamped(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return nil, fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
			}
			if found {
				res.StockLeft[item.ProductID] = left
			}
		}
	}

	var paidAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2,
		    paid_at = CASE WHEN $3 THEN COALESCE(paid_at, $4) ELSE paid_at END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING paid_at
	`, id, res.Outcome.To, res.Outcome.StampPaidAt, now.UTC()).Scan(&paidAt)
	if err != nil {
		return nil, err
	}

	if res.CustomerEmail, err = profileEmail(ctx, tx, order.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Status = res.Outcome.To
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}

	return res, nil
}

// ListExpirable returns pending orders created at or before cutoff, oldest first.
func (r *OrderRepository) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE status = $1 AND created_at <= $2
		ORDER BY created_at
		LIMIT $3
	`, domain.OrderStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func loadItems(ctx context.Context, q inventory.Querier, orderID int64) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                        domain.Order
		status                       string
		name, phone, address, postal sql.NullString
		paidAt                       sql.NullTime
	)

	if err := row.Scan(&order.ID, &order.UserID, &order.Total, &status,
		&name, &phone, &address, &postal, &order.CreatedAt, &paidAt); err != nil {
		return nil, err
	}

	var err error
	if order.Status, err = domain.ParseOrderStatus(status); err != nil {
		return nil, fmt.Errorf("order %d: %w", order.ID, err)
	}

	order.Shipping = domain.Shipping{
		RecipientName: name.String,
		Phone:         phone.String,
		Address:       address.String,
		PostalCode:    postal.String,
	}
	order.CreatedAt = order.CreatedAt.UTC()
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		order.PaidAt = &t
	}

	return &order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// IsRetryable reports whether err is a transaction abort that is safe to
// retry: a serialization failure or a deadlock victim.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
