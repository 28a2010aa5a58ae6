package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/avask/shopflow/internal/cart"
	"github.com/avask/shopflow/internal/checkout"
	"github.com/avask/shopflow/internal/delivery"
	"github.com/avask/shopflow/internal/orderstore"
	"github.com/avask/shopflow/internal/payment"
	"github.com/avask/shopflow/internal/pricing"
	"github.com/avask/shopflow/internal/repository"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: status == http.StatusServiceUnavailable,
	})
}

// handleServiceError maps the core's sentinel errors to HTTP statuses.
// Validation never retries, not-found surfaces as 404, transient failures
// get a retry affordance.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, delivery.ErrMissingPostalCode),
		errors.Is(err, delivery.ErrUnknownTimeSlot),
		errors.Is(err, delivery.ErrUrgencyNotOffered),
		errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, pricing.ErrProductNotFound),
		errors.Is(err, orderstore.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, pricing.ErrCatalogUnavailable),
		errors.Is(err, payment.ErrProviderUnavailable),
		errors.Is(err, checkout.ErrClaimContended),
		errors.Is(err, orderstore.ErrDuplicateFingerprint):
		respondError(w, http.StatusServiceUnavailable, "temporarily_unavailable", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
