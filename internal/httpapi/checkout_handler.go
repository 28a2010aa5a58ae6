package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avask/shopflow/internal/checkout"
	"github.com/avask/shopflow/internal/domain"
)

type CheckoutBroker interface {
	GetOrCreateSession(ctx context.Context, snapshot *domain.CartSnapshot) (*checkout.Result, error)
}

type PaymentReconciler interface {
	HandlePaymentComplete(ctx context.Context, sessionID string, orderID uuid.UUID) error
	HandlePaymentCancel(ctx context.Context, sessionID string, orderID *uuid.UUID) error
}

type CheckoutHandler struct {
	carts      CartService
	broker     CheckoutBroker
	reconciler PaymentReconciler
}

func NewCheckoutHandler(carts CartService, broker CheckoutBroker, reconciler PaymentReconciler) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, broker: broker, reconciler: reconciler}
}

type sessionResponse struct {
	SessionID    string    `json:"session_id"`
	ClientSecret string    `json:"client_secret"`
	OrderID      string    `json:"order_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	ExpiresAt    time.Time `json:"expires_at"`
	FromCache    bool      `json:"from_cache"`
}

// CreateSession prices the caller's cart and returns the payment session
// handle for it, reusing the live one when it exists. Safe to hammer:
// duplicate clicks converge on the same session.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	snapshot, err := h.carts.GetSnapshot(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.broker.GetOrCreateSession(r.Context(), snapshot)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.FromCache {
		status = http.StatusOK
	}
	respondJSON(w, status, sessionResponse{
		SessionID:    result.Session.SessionID,
		ClientSecret: result.Session.ClientSecret,
		OrderID:      result.Session.OrderID.String(),
		Amount:       result.Session.Amount,
		Currency:     result.Session.Currency,
		ExpiresAt:    result.Session.ExpiresAt,
		FromCache:    result.FromCache,
	})
}

type webhookRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id,omitempty"`
}

// Webhook consumes the provider's asynchronous outcome callbacks. The
// provider retries on non-2xx, so transient failures return 500 and
// duplicates must stay harmless.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}

	switch req.Type {
	case "payment.completed":
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_order_id", "completion requires a valid order_id")
			return
		}
		if err := h.reconciler.HandlePaymentComplete(r.Context(), req.SessionID, orderID); err != nil {
			handleServiceError(w, err)
			return
		}
	case "payment.cancelled":
		var orderID *uuid.UUID
		if req.OrderID != "" {
			parsed, err := uuid.Parse(req.OrderID)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is not a valid uuid")
				return
			}
			orderID = &parsed
		}
		if err := h.reconciler.HandlePaymentCancel(r.Context(), req.SessionID, orderID); err != nil {
			handleServiceError(w, err)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "unknown_event_type", "unsupported webhook type")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
