// Package email is a stand-in mail transport that logs what it would send.
package email

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// maxMessageBytes bounds a whole request, headers excluded.
const maxMessageBytes = 64 << 10

type Handler struct {
	logger *slog.Logger
	newID  func() string
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		newID:  uuid.NewString,
	}
}

type message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type accepted struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

// HandleSend accepts one message and answers with the id it was logged
// under. Oversized bodies get 413; anything unparseable or unaddressable
// gets 400, which the worker treats as permanent.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)

	var msg message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(msg.To))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient address")
		return
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" || strings.ContainsAny(subject, "\r\n") {
		h.writeError(w, http.StatusBadRequest, "subject is required and must be one line")
		return
	}

	id := h.newID()
	h.logger.Info("email sent",
		"message_id", id,
		"to", addr.Address,
		"subject", subject,
		"body_bytes", len(msg.Body),
	)

	h.writeJSON(w, http.StatusOK, accepted{Status: "sent", MessageID: id})
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
