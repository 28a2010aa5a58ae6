package reaper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/orderstore"
	"github.com/avask/shopflow/internal/repository"
)

// SweepReport summarizes one pass of the abandoned-cart sweep.
type SweepReport struct {
	CartsDeleted int
	ItemsDeleted int
	CartsSkipped int
	Errors       []string
}

// Reaper deletes cart state older than the retention window. It is a
// best-effort batch job: per-owner failures go into the report, the sweep
// keeps going. A cart whose owner has an active order is never deleted —
// that cart converted into a real purchase and stays for history.
type Reaper struct {
	carts  repository.CartRepository
	orders orderstore.OrderRepository
	cache  cache.SnapshotCache

	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewReaper(carts repository.CartRepository, orders orderstore.OrderRepository, snapCache cache.SnapshotCache) *Reaper {
	return &Reaper{
		carts:     carts,
		orders:    orders,
		cache:     snapCache,
		retention: 24 * time.Hour,
		interval:  time.Hour,
		now:       time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report, err := r.Sweep(ctx)
			if err != nil {
				log.Printf("abandoned cart sweep failed: %v", err)
				continue
			}
			log.Printf("abandoned cart sweep: deleted=%d items=%d skipped=%d errors=%d",
				report.CartsDeleted, report.ItemsDeleted, report.CartsSkipped, len(report.Errors))
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass over carts older than the retention window.
func (r *Reaper) Sweep(ctx context.Context) (*SweepReport, error) {
	cutoff := r.now().Add(-r.retention)

	stale, err := r.carts.ListStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale carts: %w", err)
	}

	report := &SweepReport{}
	for _, cart := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		_, err := r.orders.FindActiveOrderForOwner(ctx, cart.OwnerID)
		if err == nil {
			report.CartsSkipped++
			continue
		}
		if !errors.Is(err, orderstore.ErrOrderNotFound) {
			report.Errors = append(report.Errors, fmt.Sprintf("owner %s: check active order: %v", cart.OwnerID, err))
			continue
		}

		if err := r.carts.DeleteCart(ctx, cart.OwnerID); err != nil {
			if errors.Is(err, repository.ErrCartNotFound) {
				continue // someone else cleaned it up, fine
			}
			report.Errors = append(report.Errors, fmt.Sprintf("owner %s: delete cart: %v", cart.OwnerID, err))
			continue
		}
		report.CartsDeleted++
		report.ItemsDeleted += len(cart.Items)

		if err := r.cache.Delete(ctx, cart.OwnerID); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("owner %s: clear cache: %v", cart.OwnerID, err))
		}
	}
	return report, nil
}
