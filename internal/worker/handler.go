// Package worker turns order status events into customer emails.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/messaging"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle emails the customer when an order is paid, expired or cancelled.
// A malformed event is skipped; an email failure is returned for redelivery.
func (h *NotificationHandler) Handle(ctx context.Context, d messaging.Delivery) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order status event: %w", err))
	}

	h.logger.Info("processing order status event",
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"to", event.To,
		"event_id", d.EventID,
	)

	msg, ok := messageFor(event)
	if !ok {
		h.logger.Info("no notification for status", "order_id", event.OrderID, "to", event.To)
		return nil
	}
	if msg.To == "" {
		h.logger.Warn("no email on file, notification skipped", "order_id", event.OrderID, "user_id", event.UserID)
		return nil
	}

	if err := h.sendEmail(ctx, msg); err != nil {
		h.logger.Error("failed to send email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send email for order %d: %w", event.OrderID, err)
	}

	h.logger.Info("notification sent", "order_id", event.OrderID, "subject", msg.Subject)
	return nil
}

// messageFor picks the template for the new status. The recipient is the
// address carried on the event and may be empty.
func messageFor(event domain.OrderStatusChangedEvent) (emailMessage, bool) {
	to := event.Email

	switch event.To {
	case domain.OrderStatusPaid:
		return emailMessage{
			To:      to,
			Subject: fmt.Sprintf("Payment received: order %d", event.OrderID),
			Body:    fmt.Sprintf("We received your payment of %s for order %d. It is being prepared for shipping.", event.Total.StringFixed(2), event.OrderID),
		}, true
	case domain.OrderStatusExpired:
		return emailMessage{
			To:      to,
			Subject: fmt.Sprintf("Order %d expired", event.OrderID),
			Body:    fmt.Sprintf("Your order %d was not paid within the payment window and has expired.", event.OrderID),
		}, true
	case domain.OrderStatusCancelled:
		return emailMessage{
			To:      to,
			Subject: fmt.Sprintf("Order %d cancelled", event.OrderID),
			Body:    fmt.Sprintf("The payment for order %d was cancelled or declined.", event.OrderID),
		}, true
	}
	return emailMessage{}, false
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest {
		return messaging.Permanent(fmt.Errorf("email service rejected message"))
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
