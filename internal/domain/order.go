package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus rejects anything outside the four persisted statuses.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusExpired, OrderStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Terminal reports whether no payment transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusExpired || s == OrderStatusCancelled
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	Shipping  Shipping        `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

// CartLine is a cart entry joined with the product it references, as read
// inside the checkout transaction.
type CartLine struct {
	Entry   CartEntry
	Product Product
}

// NewOrder validates the cart against current stock and freezes each line's
// discounted unit price into a pending order.
func NewOrder(userID string, lines []CartLine, shipping Shipping, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "cart", Reason: "cart is empty"}
	}

	order := &Order{
		UserID:    userID,
		Items:     make([]OrderItem, 0, len(lines)),
		Total:     decimal.Zero,
		Status:    OrderStatusPending,
		Shipping:  shipping,
		CreatedAt: now.UTC(),
	}

	for _, line := range lines {
		if err := line.Product.CanFulfil(line.Entry.Quantity); err != nil {
			return nil, err
		}

		price := line.Product.UnitPrice()
		order.Items = append(order.Items, OrderItem{
			ProductID: line.Product.ID,
			Quantity:  line.Entry.Quantity,
			Price:     price,
		})
		order.Total = order.Total.Add(price.Mul(decimal.NewFromInt(int64(line.Entry.Quantity))))
	}

	return order, nil
}
