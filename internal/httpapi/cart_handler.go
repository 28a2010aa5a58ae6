package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avask/shopflow/internal/domain"
)

// CartService is what the cart handler needs from the core.
type CartService interface {
	AddOrUpdateLine(ctx context.Context, ownerID, productID string, quantity int, selections domain.Selection) error
	UpdateLineQuantity(ctx context.Context, ownerID, productID string, quantity int, selections domain.Selection) error
	RemoveLine(ctx context.Context, ownerID, productID string, selections domain.Selection) error
	ClearCart(ctx context.Context, ownerID string) error
	GetSnapshot(ctx context.Context, ownerID string) (*domain.CartSnapshot, error)
	MergeGuestCart(ctx context.Context, guestID, userID string) error
}

type CartHandler struct {
	carts CartService
}

func NewCartHandler(carts CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type addLineRequest struct {
	ProductID  string           `json:"product_id"`
	Quantity   int              `json:"quantity"`
	Selections domain.Selection `json:"selections,omitempty"`
}

func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.carts.AddOrUpdateLine(r.Context(), ownerID, req.ProductID, req.Quantity, req.Selections); err != nil {
		handleServiceError(w, err)
		return
	}

	snapshot, err := h.carts.GetSnapshot(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snapshot)
}

type updateLineRequest struct {
	ProductID  string           `json:"product_id"`
	Quantity   int              `json:"quantity"`
	Selections domain.Selection `json:"selections,omitempty"`
}

// UpdateLine sets the quantity of an existing line. Quantity zero is not
// an implicit remove; clients delete lines through RemoveLine.
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req updateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.carts.UpdateLineQuantity(r.Context(), ownerID, req.ProductID, req.Quantity, req.Selections); err != nil {
		handleServiceError(w, err)
		return
	}

	snapshot, err := h.carts.GetSnapshot(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

type removeLineRequest struct {
	ProductID  string           `json:"product_id"`
	Selections domain.Selection `json:"selections,omitempty"`
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req removeLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.carts.RemoveLine(r.Context(), ownerID, req.ProductID, req.Selections); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, snapshot)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	if err := h.carts.ClearCart(r.Context(), ownerID); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type mergeRequest struct {
	GuestID string `json:"guest_id"`
}

// Merge folds the anonymous cart named in the body into the caller's
// authenticated cart. Called by the auth layer right after login.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	if ownerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.GuestID == "" || req.GuestID == ownerID {
		respondError(w, http.StatusBadRequest, "invalid_guest_id", "guest_id must name a different cart")
		return
	}

	if err := h.carts.MergeGuestCart(r.Context(), req.GuestID, ownerID); err != nil {
		handleServiceError(w, err)
		return
	}

	snapshot, err := h.carts.GetSnapshot(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}
