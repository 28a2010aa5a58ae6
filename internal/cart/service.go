package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/domain"
	"github.com/avask/shopflow/internal/pricing"
	"github.com/avask/shopflow/internal/repository"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// CartService owns all cart mutations and the priced-snapshot read path.
// Every mutation invalidates the owner's snapshot cache entry before
// returning; a stale cached total after a mutation is a correctness bug,
// not a performance nuance.
type CartService struct {
	repo   repository.CartRepository
	cache  cache.SnapshotCache
	pricer *pricing.Resolver
	sfg    singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, snapCache cache.SnapshotCache, pricer *pricing.Resolver) *CartService {
	return &CartService{
		repo:   repo,
		cache:  snapCache,
		pricer: pricer,
	}
}

// AddOrUpdateLine prices the line against the current catalog and adds it
// to the owner's cart, merging with an existing line for the same
// (product, customization-set).
func (s *CartService) AddOrUpdateLine(ctx context.Context, ownerID, productID string, quantity int, selections domain.Selection) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	// Missing product is a hard failure here: we will not add a line we
	// cannot price.
	result, err := s.pricer.ResolvePrice(ctx, productID, selections, quantity)
	if err != nil {
		return fmt.Errorf("price line: %w", err)
	}

	item := domain.LineItem{
		ProductID:  productID,
		Quantity:   quantity,
		Selections: selections,
		UnitPrice:  result.UnitPrice,
		LineTotal:  result.TotalPrice,
	}

	if err := s.repo.AddLine(ctx, ownerID, item); err != nil {
		log.Printf("repo add line error: %v", err)
		return err
	}

	s.invalidate(ownerID)
	return nil
}

// UpdateLineQuantity replaces the quantity of an existing line and
// reprices it against the current catalog. Unlike AddOrUpdateLine it
// never merges or appends; a missing line is ErrItemNotFound.
func (s *CartService) UpdateLineQuantity(ctx context.Context, ownerID, productID string, quantity int, selections domain.Selection) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	result, err := s.pricer.ResolvePrice(ctx, productID, selections, quantity)
	if err != nil {
		return fmt.Errorf("price line: %w", err)
	}

	if err := s.repo.SetLineQuantity(ctx, ownerID, productID, selections.Key(), quantity, result.UnitPrice, result.TotalPrice); err != nil {
		log.Printf("repo set line quantity error: %v", err)
		return err
	}

	s.invalidate(ownerID)
	return nil
}

func (s *CartService) RemoveLine(ctx context.Context, ownerID, productID string, selections domain.Selection) error {
	if err := s.repo.RemoveLine(ctx, ownerID, productID, selections.Key()); err != nil {
		log.Printf("repo remove line error: %v", err)
		return err
	}

	s.invalidate(ownerID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, ownerID string) error {
	if err := s.repo.DeleteCart(ctx, ownerID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		log.Printf("repo delete cart error: %v", err)
		return err
	}

	s.invalidate(ownerID)
	return nil
}

// GetSnapshot returns the priced snapshot for the owner's cart, serving
// from cache when possible. Line prices are always recomputed from the
// current catalog on a rebuild; the stored per-line totals are never
// trusted without revalidation.
func (s *CartService) GetSnapshot(ctx context.Context, ownerID string) (*domain.CartSnapshot, error) {
	v, err, _ := s.sfg.Do(ownerID, func() (interface{}, error) {
		snapshot, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("snapshot cache get error: %v", err) // log cache error but continue
		}

		snapshot, err = s.buildSnapshot(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		// Written synchronously so a mutation arriving after this call
		// cannot be overwritten by a stale async rewrite.
		if errSet := s.cache.Set(ctx, ownerID, snapshot); errSet != nil {
			log.Printf("snapshot cache set error: %v", errSet)
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartSnapshot), nil
}

// MergeGuestCart folds an anonymous cart into a freshly authenticated
// user's cart, line by line, with the usual (product, customization-set)
// merge. The guest cart is deleted only after every line landed.
func (s *CartService) MergeGuestCart(ctx context.Context, guestID, userID string) error {
	guestCart, err := s.repo.GetCart(ctx, guestID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil // nothing to merge
	}
	if err != nil {
		return fmt.Errorf("load guest cart: %w", err)
	}

	for _, line := range guestCart.Items {
		if err := s.repo.AddLine(ctx, userID, line); err != nil {
			s.invalidate(userID)
			return fmt.Errorf("merge line %s: %w", line.ProductID, err)
		}
	}

	if err := s.repo.DeleteCart(ctx, guestID); err != nil {
		return fmt.Errorf("delete guest cart after merge: %w", err)
	}

	s.invalidate(guestID)
	s.invalidate(userID)
	return nil
}

func (s *CartService) buildSnapshot(ctx context.Context, ownerID string) (*domain.CartSnapshot, error) {
	now := time.Now()

	cart, err := s.repo.GetCart(ctx, ownerID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.CartSnapshot{OwnerID: ownerID, Currency: "USD", CapturedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}

	snapshot := &domain.CartSnapshot{
		OwnerID:    ownerID,
		Items:      make([]domain.SnapshotItem, 0, len(cart.Items)),
		Currency:   "USD",
		CapturedAt: now,
	}

	var total int64
	for _, line := range cart.Items {
		result, err := s.pricer.ResolvePrice(ctx, line.ProductID, line.Selections, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("reprice line %s: %w", line.ProductID, err)
		}

		snapshot.Items = append(snapshot.Items, domain.SnapshotItem{
			ProductID:   line.ProductID,
			ProductName: result.ProductName,
			Quantity:    line.Quantity,
			Selections:  line.Selections,
			UnitPrice:   result.UnitPrice,
			LineTotal:   result.TotalPrice,
		})
		snapshot.Warnings = append(snapshot.Warnings, result.Warnings...)
		if result.Currency != "" {
			snapshot.Currency = result.Currency
		}
		total += result.TotalPrice
	}
	snapshot.TotalAmount = total

	return snapshot, nil
}

func (s *CartService) invalidate(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		log.Printf("snapshot cache invalidate error: %v", err)
	}
}
