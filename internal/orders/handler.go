package orders

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/identity"
)

const maxNotificationBytes = 1 << 20

type Handler struct {
	service   *Service
	clientKey string
	logger    *slog.Logger
}

func NewHandler(service *Service, clientKey string, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		clientKey: clientKey,
		logger:    logger,
	}
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	var shipping domain.Shipping
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&shipping); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	order, err := h.service.Checkout(r.Context(), caller, shipping)
	if err != nil {
		h.writeServiceError(w, err, "checkout failed", "user_id", caller.ID)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	orders, err := h.service.ListMine(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err, "failed to list orders", "user_id", caller.ID)
		return
	}

	h.logger.Info("orders listed", "user_id", caller.ID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	orders, err := h.service.ListAll(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err, "failed to list all orders", "user_id", caller.ID)
		return
	}

	h.logger.Info("all orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get order", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleUpdateShipping(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var shipping domain.Shipping
	if err := json.NewDecoder(r.Body).Decode(&shipping); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateShipping(r.Context(), caller, id, shipping)
	if err != nil {
		h.writeServiceError(w, err, "failed to update shipping", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type payRequest struct {
	OrderID json.RawMessage `json:"order_id"`
}

func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, ok := parseOrderID(req.OrderID)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required", "field": "order_id"})
		return
	}

	session, err := h.service.InitiatePayment(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err, "failed to initiate payment", "order_id", id)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     id,
		"attempt_id":   session.AttemptID,
		"token":        session.Token,
		"redirect_url": session.RedirectURL,
	})
}

// HandleWebhook always acknowledges with 200 unless reconciliation itself
// failed, so the gateway stops redelivering notifications we chose to ignore.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Warn("failed to read notification body", "error", err)
	}

	result, err := h.service.HandleNotification(r.Context(), body)
	if err != nil {
		h.logger.Error("failed to reconcile notification", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal server error"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": string(result.Outcome)})
}

// HandleWebhookProbe answers the gateway's GET reachability check.
func (h *Handler) HandleWebhookProbe(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	if h.clientKey == "" {
		h.writeError(w, http.StatusInternalServerError, "payment client key not configured")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"client_key": h.clientKey})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

// parseOrderID accepts the id as a JSON number or a numeric string.
func parseOrderID(raw json.RawMessage) (int64, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, args ...any) {
	var verr *domain.ValidationError
	var serr *domain.StateError

	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Reason, "field": verr.Field})
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &serr):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": serr.Error(), "status": string(serr.Status)})
	case errors.Is(err, domain.ErrExpired):
		h.writeJSON(w, http.StatusGone, map[string]string{"error": "order expired", "status": string(domain.OrderStatusExpired)})
	case errors.Is(err, domain.ErrGateway):
		h.writeJSON(w, http.StatusBadGateway, map[string]any{"error": "payment gateway unavailable", "retryable": true})
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
