package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/identity"
)

type Store interface {
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
	Set(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartEntry, error)
	Remove(ctx context.Context, userID string, productID int64) error
	Clear(ctx context.Context, userID string) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type cartLineResponse struct {
	ProductID int64          `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Product   domain.Product `json:"product"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	lines, err := h.store.List(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("failed to list cart", "error", err, "user_id", caller.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]cartLineResponse, 0, len(lines))
	for _, l := range lines {
		resp = append(resp, cartLineResponse{ProductID: l.Entry.ProductID, Quantity: l.Entry.Quantity, Product: l.Product})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type setRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID <= 0 || req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "product_id and quantity are required")
		return
	}

	entry, err := h.store.Set(r.Context(), caller.ID, req.ProductID, *req.Quantity)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	case errors.Is(err, domain.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to update cart", "error", err, "user_id", caller.ID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if entry == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
		return
	}

	h.logger.Info("cart updated", "user_id", caller.ID, "product_id", entry.ProductID, "quantity", entry.Quantity)
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.Remove(r.Context(), caller.ID, productID); err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "user_id", caller.ID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())

	if err := h.store.Clear(r.Context(), caller.ID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", caller.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
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
