// Package lifecycle holds the order status machine and the payment window.
package lifecycle

import "github.com/joao-fontenele/orderflow-checkout/internal/domain"

// Event is something that may move an order between statuses.
type Event int

const (
	// EventSettled is a gateway capture or settlement.
	EventSettled Event = iota + 1
	// EventWindowElapsed is the local clock passing the payment window.
	EventWindowElapsed
	// EventGatewayExpired is the gateway reporting its own session expiry.
	EventGatewayExpired
	// EventCancelled is a gateway cancel or deny.
	EventCancelled
	// EventGatewayPending carries no transition.
	EventGatewayPending
)

func (e Event) String() string {
	switch e {
	case EventSettled:
		return "settled"
	case EventWindowElapsed:
		return "window_elapsed"
	case EventGatewayExpired:
		return "gateway_expired"
	case EventCancelled:
		return "cancelled"
	case EventGatewayPending:
		return "gateway_pending"
	}
	return "unknown"
}

// Outcome describes the result of applying an event and the side effects
// the caller must perform in the same transaction.
type Outcome struct {
	From           domain.OrderStatus
	To             domain.OrderStatus
	DecrementStock bool
	StampPaidAt    bool
}

func (o Outcome) Changed() bool {
	return o.From != o.To
}

// Next is the only place status transitions are decided. Terminal statuses
// absorb every event, so a repeated settlement never decrements twice and a
// late gateway "pending" never revives an expired order.
func Next(current domain.OrderStatus, ev Event) Outcome {
	out := Outcome{From: current, To: current}
	if current != domain.OrderStatusPending {
		return out
	}

	switch ev {
	case EventSettled:
		out.To = domain.OrderStatusPaid
		out.DecrementStock = true
		out.StampPaidAt = true
	case EventWindowElapsed, EventGatewayExpired:
		out.To = domain.OrderStatusExpired
	case EventCancelled:
		out.To = domain.OrderStatusCancelled
	}
	return out
}
