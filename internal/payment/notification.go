package payment

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NotificationStatus is the internal reading of a gateway transaction_status.
type NotificationStatus int

const (
	StatusUnrecognized NotificationStatus = iota
	StatusPending
	StatusPaid
	StatusExpired
	StatusCancelled
)

func (s NotificationStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPaid:
		return "paid"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	}
	return "unrecognized"
}

var gatewayStatuses = map[string]NotificationStatus{
	"capture":    StatusPaid,
	"settlement": StatusPaid,
	"expire":     StatusExpired,
	"expired":    StatusExpired,
	"cancel":     StatusCancelled,
	"cancelled":  StatusCancelled,
	"deny":       StatusCancelled,
	"pending":    StatusPending,
}

// ParseStatus maps a gateway status string, case-insensitively.
func ParseStatus(s string) NotificationStatus {
	return gatewayStatuses[strings.ToLower(strings.TrimSpace(s))]
}

// Notification is a decoded gateway callback. HasOrder is false when the
// payload carried no usable order reference.
type Notification struct {
	Reference string
	OrderID   int64
	HasOrder  bool
	RawStatus string
	Status    NotificationStatus
}

type notificationPayload struct {
	OrderID           any    `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
}

// ParseNotification never fails: the gateway's connectivity check posts
// empty or foreign payloads and must be acknowledged like anything else.
func ParseNotification(body []byte) Notification {
	var p notificationPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Notification{}
	}

	n := Notification{
		RawStatus: p.TransactionStatus,
		Status:    ParseStatus(p.TransactionStatus),
	}

	switch ref := p.OrderID.(type) {
	case string:
		n.Reference = ref
	case float64:
		n.Reference = strconv.FormatFloat(ref, 'f', -1, 64)
	}
	n.OrderID, n.HasOrder = ParseOrderReference(n.Reference)
	return n
}

// ParseOrderReference extracts the numeric order id from "ORDER-<id>",
// "ORDER-<id>-<suffix>" or a bare "<id>".
func ParseOrderReference(ref string) (int64, bool) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), attemptPrefix)
	head, _, _ := strings.Cut(ref, "-")
	if head == "" {
		return 0, false
	}

	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
