package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/lifecycle"
)

const (
	attemptPrefix = "ORDER-"

	// ExpiryTimeLayout is the gateway's "YYYY-MM-DD HH:MM:SS ±ZZZZ" format.
	ExpiryTimeLayout = "2006-01-02 15:04:05 -0700"
)

// AttemptID is the gateway-side order id for one payment attempt. Each
// initiation gets a fresh suffix so the gateway never rejects a retry as a
// duplicate, while every attempt still resolves to the same order.
func AttemptID(orderID int64, now time.Time) string {
	return fmt.Sprintf("%s%d-%d", attemptPrefix, orderID, now.UnixMilli())
}

// SessionRequest is everything the gateway needs to open a payment session.
type SessionRequest struct {
	AttemptID   string
	OrderID     int64
	GrossAmount decimal.Decimal
	// ExpiryStart anchors the gateway's own expiry to order creation, so
	// both sides close the window at the same instant.
	ExpiryStart    time.Time
	ExpiryDuration time.Duration
}

func NewSessionRequest(order *domain.Order, now time.Time) SessionRequest {
	return SessionRequest{
		AttemptID:      AttemptID(order.ID, now),
		OrderID:        order.ID,
		GrossAmount:    order.Total,
		ExpiryStart:    order.CreatedAt,
		ExpiryDuration: lifecycle.Window,
	}
}

// Remaining is how long the session stays payable when opened at now.
func (r SessionRequest) Remaining(now time.Time) time.Duration {
	return max(0, r.ExpiryStart.Add(r.ExpiryDuration).Sub(now))
}

type Session struct {
	AttemptID   string `json:"attempt_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}
