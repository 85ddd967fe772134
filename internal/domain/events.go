package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderCreated = "order.created"
	TopicOrderStatus  = "order.status"
)

type OrderCreatedEvent struct {
	OrderID   int64           `json:"order_id"`
	UserID    string          `json:"user_id"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID   int64           `json:"order_id"`
	UserID    string          `json:"user_id"`
	Email     string          `json:"email,omitempty"`
	From      OrderStatus     `json:"from"`
	To        OrderStatus     `json:"to"`
	Total     decimal.Decimal `json:"total"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
