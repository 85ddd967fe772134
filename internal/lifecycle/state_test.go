package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
)

var (
	allStatuses = []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusPaid,
		domain.OrderStatusExpired,
		domain.OrderStatusCancelled,
	}
	allEvents = []Event{
		EventSettled,
		EventWindowElapsed,
		EventGatewayExpired,
		EventCancelled,
		EventGatewayPending,
	}
)

func TestNext_FromPending(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		want      domain.OrderStatus
		decrement bool
	}{
		{"settlement pays", EventSettled, domain.OrderStatusPaid, true},
		{"local window expires", EventWindowElapsed, domain.OrderStatusExpired, false},
		{"gateway expiry expires", EventGatewayExpired, domain.OrderStatusExpired, false},
		{"cancel cancels", EventCancelled, domain.OrderStatusCancelled, false},
		{"gateway pending is a no-op", EventGatewayPending, domain.OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Next(domain.OrderStatusPending, tt.event)

			assert.Equal(t, domain.OrderStatusPending, out.From)
			assert.Equal(t, tt.want, out.To)
			assert.Equal(t, tt.decrement, out.DecrementStock)
			assert.Equal(t, tt.decrement, out.StampPaidAt)
			assert.Equal(t, tt.want != domain.OrderStatusPending, out.Changed())
		})
	}
}

func TestNext_TerminalStatusesAreSticky(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusExpired, domain.OrderStatusCancelled} {
		for _, ev := range allEvents {
			t.Run(string(status)+"/"+ev.String(), func(t *testing.T) {
				out := Next(status, ev)

				assert.False(t, out.Changed())
				assert.False(t, out.DecrementStock)
				assert.False(t, out.StampPaidAt)
				assert.Equal(t, status, out.To)
			})
		}
	}
}

// Replaying any sequence of events decrements stock at most once and only
// ever on the transition into paid.
func TestNext_DecrementsAtMostOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		events := rapid.SliceOf(rapid.SampledFrom(allEvents)).Draw(t, "events")

		status := domain.OrderStatusPending
		decrements := 0
		everPaid := false
		for _, ev := range events {
			out := Next(status, ev)
			if out.DecrementStock {
				decrements++
				if out.To != domain.OrderStatusPaid {
					t.Fatalf("decrement on transition to %s", out.To)
				}
			}
			if status.Terminal() && out.Changed() {
				t.Fatalf("terminal status %s moved to %s", status, out.To)
			}
			status = out.To
			everPaid = everPaid || status == domain.OrderStatusPaid
		}

		if decrements > 1 {
			t.Fatalf("stock decremented %d times", decrements)
		}
		if everPaid != (decrements == 1) {
			t.Fatalf("paid=%v but decrements=%d", everPaid, decrements)
		}
	})
}

func TestNext_UnknownEventLeavesPending(t *testing.T) {
	out := Next(domain.OrderStatusPending, Event(99))

	assert.False(t, out.Changed())
	assert.Equal(t, "unknown", Event(99).String())
}

func TestStatusesCovered(t *testing.T) {
	for _, s := range allStatuses {
		parsed, err := domain.ParseOrderStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}
