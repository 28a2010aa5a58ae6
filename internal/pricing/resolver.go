package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/avask/shopflow/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// ModifierLine records one selected choice's contribution to the unit
// price, for display and debugging.
type ModifierLine struct {
	OptionID string `json:"option_id"`
	ChoiceID string `json:"choice_id"`
	Amount   int64  `json:"amount"`
}

type PriceResult struct {
	ProductID   string
	ProductName string
	UnitPrice   int64
	TotalPrice  int64
	Currency    string
	Breakdown   []ModifierLine
	// Warnings lists selection ids that no longer exist in the catalog.
	// Catalogs drift; a stale client selection prices as zero instead of
	// failing the whole checkout.
	Warnings []string
}

// Resolver computes unit and line prices for a product plus a set of
// customization selections. Catalog lookups go through a read-through
// cache; if the store is unreachable the last cached catalog is used.
type Resolver struct {
	store CatalogStore
	cache *CatalogCache
}

func NewResolver(store CatalogStore, cache *CatalogCache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// InvalidateProduct drops the cached catalog entry, forcing a refetch on
// the next resolution. Wired to catalog-edit notifications.
func (r *Resolver) InvalidateProduct(productID string) {
	r.cache.Invalidate(productID)
}

func (r *Resolver) ResolvePrice(ctx context.Context, productID string, selections domain.Selection, quantity int) (*PriceResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	record, err := r.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	base := decimal.NewFromInt(record.Product.BasePrice)
	unit := base

	result := &PriceResult{
		ProductID:   record.Product.ID,
		ProductName: record.Product.Name,
		Currency:    record.Product.Currency,
	}

	options := make(map[string]domain.Option, len(record.Options))
	for _, opt := range record.Options {
		options[opt.ID] = opt
	}

	for optionID, choiceIDs := range selections {
		option, ok := options[optionID]
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown option %q", optionID))
			continue
		}
		for _, choiceID := range choiceIDs {
			choice, ok := findChoice(option, choiceID)
			if !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown choice %q for option %q", choiceID, optionID))
				continue
			}

			amount := decimal.NewFromInt(choice.Modifier)
			if !choice.Percent.IsZero() {
				amount = amount.Add(base.Mul(choice.Percent).Round(0))
			}
			unit = unit.Add(amount)

			result.Breakdown = append(result.Breakdown, ModifierLine{
				OptionID: optionID,
				ChoiceID: choiceID,
				Amount:   amount.IntPart(),
			})
		}
	}

	// A pathological set of negative modifiers must not price below zero.
	if unit.IsNegative() {
		unit = decimal.Zero
	}

	result.UnitPrice = unit.IntPart()
	result.TotalPrice = unit.Mul(decimal.NewFromInt(int64(quantity))).IntPart()
	return result, nil
}

func (r *Resolver) lookup(ctx context.Context, productID string) (*catalogRecord, error) {
	record, fresh, ok := r.cache.get(productID)
	if ok && fresh {
		return record, nil
	}

	fetched, err := r.fetch(ctx, productID)
	if err == nil {
		r.cache.put(productID, fetched)
		return fetched, nil
	}
	if errors.Is(err, ErrProductNotFound) {
		return nil, err
	}

	// Store unreachable: a stale catalog still prices carts correctly far
	// more often than a hard failure helps anyone.
	if ok {
		log.Printf("catalog fetch failed, serving stale entry for product %s: %v", productID, err)
		return record, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func (r *Resolver) fetch(ctx context.Context, productID string) (*catalogRecord, error) {
	product, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	options, err := r.store.GetCustomizationOptions(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &catalogRecord{Product: product, Options: options}, nil
}

func findChoice(option domain.Option, choiceID string) (domain.Choice, bool) {
	for _, c := range option.Choices {
		if c.ID == choiceID {
			return c, true
		}
	}
	return domain.Choice{}, false
}
