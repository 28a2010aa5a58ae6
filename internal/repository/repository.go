package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avask/shopflow/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, error)

	// AddLine merges by (product, customization-set): an existing matching
	// line gets the quantity summed, otherwise the line is appended.
	AddLine(ctx context.Context, ownerID string, item domain.LineItem) error

	// SetLineQuantity replaces the quantity of the matching line along
	// with its re-resolved unit price and line total.
	SetLineQuantity(ctx context.Context, ownerID string, productID, selectionKey string, quantity int, unitPrice, lineTotal int64) error

	RemoveLine(ctx context.Context, ownerID string, productID, selectionKey string) error
	DeleteCart(ctx context.Context, ownerID string) error

	// ListStale returns carts not touched since the cutoff. Used by the
	// abandoned-cart sweep.
	ListStale(ctx context.Context, cutoff time.Time) ([]domain.Cart, error)
}
