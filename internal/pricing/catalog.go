package pricing

import (
	"context"
	"errors"

	"github.com/avask/shopflow/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrCatalogUnavailable means the catalog store could not be reached
	// and no cached copy exists. Callers surface it as "pricing
	// temporarily unavailable, retry".
	ErrCatalogUnavailable = errors.New("catalog temporarily unavailable")
)

// CatalogStore is the external product/customization catalog. The core
// never owns this data, it only reads it.
type CatalogStore interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	GetCustomizationOptions(ctx context.Context, productID string) ([]domain.Option, error)
}
