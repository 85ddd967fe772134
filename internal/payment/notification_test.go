package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := map[string]NotificationStatus{
		"capture":    StatusPaid,
		"settlement": StatusPaid,
		"SETTLEMENT": StatusPaid,
		"expire":     StatusExpired,
		"expired":    StatusExpired,
		"cancel":     StatusCancelled,
		"cancelled":  StatusCancelled,
		"deny":       StatusCancelled,
		"pending":    StatusPending,
		"refund":     StatusUnrecognized,
		"":           StatusUnrecognized,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseStatus(in))
		})
	}
}

func TestParseOrderReference(t *testing.T) {
	tests := []struct {
		ref    string
		wantID int64
		wantOK bool
	}{
		{"ORDER-123", 123, true},
		{"ORDER-123-1700000000000", 123, true},
		{"123", 123, true},
		{"  ORDER-9-1 ", 9, true},
		{"ORDER-", 0, false},
		{"ORDER-abc-1", 0, false},
		{"payment_notif_test_G123", 0, false},
		{"ORDER-0", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			id, ok := ParseOrderReference(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseNotification(t *testing.T) {
	t.Run("suffixed reference and extra fields", func(t *testing.T) {
		n := ParseNotification([]byte(`{"order_id":"ORDER-42-1700000000000","transaction_status":"settlement","gross_amount":"180.00","fraud_status":"accept"}`))

		assert.True(t, n.HasOrder)
		assert.Equal(t, int64(42), n.OrderID)
		assert.Equal(t, "ORDER-42-1700000000000", n.Reference)
		assert.Equal(t, StatusPaid, n.Status)
	})

	t.Run("numeric order id", func(t *testing.T) {
		n := ParseNotification([]byte(`{"order_id":7,"transaction_status":"deny"}`))

		assert.True(t, n.HasOrder)
		assert.Equal(t, int64(7), n.OrderID)
		assert.Equal(t, StatusCancelled, n.Status)
	})

	t.Run("missing order id", func(t *testing.T) {
		n := ParseNotification([]byte(`{"transaction_status":"settlement"}`))
		assert.False(t, n.HasOrder)
	})

	t.Run("empty body", func(t *testing.T) {
		n := ParseNotification(nil)
		assert.False(t, n.HasOrder)
		assert.Equal(t, StatusUnrecognized, n.Status)
	})

	t.Run("not json", func(t *testing.T) {
		n := ParseNotification([]byte("ping"))
		assert.False(t, n.HasOrder)
	})
}
