package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/orderstore"
)

// Reconciler folds the payment provider's asynchronous outcome callbacks
// back into durable order state. The order id, not the provider session
// id, is the authoritative correlation key: a session cache entry may have
// expired and been reclaimed by a different cart long before the callback
// arrives.
type Reconciler struct {
	orders   orderstore.OrderRepository
	sessions cache.SessionCache
}

func NewReconciler(orders orderstore.OrderRepository, sessions cache.SessionCache) *Reconciler {
	return &Reconciler{orders: orders, sessions: sessions}
}

// HandlePaymentComplete confirms the order for a completed provider
// session. Cache invalidation happens first so no further
// GetOrCreateSession call can hand out the finalized session; its failure
// is logged and swallowed because the order row is the source of truth.
// Duplicate callbacks for an already-confirmed order are a no-op.
func (r *Reconciler) HandlePaymentComplete(ctx context.Context, sessionID string, orderID uuid.UUID) error {
	order, err := r.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	r.invalidate(ctx, order.Fingerprint, sessionID)

	changed, err := r.orders.ConfirmOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("confirm order %s: %w", orderID, err)
	}
	if !changed {
		log.Printf("duplicate completion for order %s (session %s), ignoring", orderID, sessionID)
	}
	return nil
}

// HandlePaymentCancel cancels the order, if one exists, for a cancelled or
// failed provider session. A callback arriving before any order was
// created (orderID == nil) is a no-op beyond cache invalidation.
func (r *Reconciler) HandlePaymentCancel(ctx context.Context, sessionID string, orderID *uuid.UUID) error {
	if orderID == nil {
		r.invalidateBySessionID(ctx, sessionID)
		return nil
	}

	order, err := r.orders.GetOrderByID(ctx, *orderID)
	if errors.Is(err, orderstore.ErrOrderNotFound) {
		r.invalidateBySessionID(ctx, sessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	r.invalidate(ctx, order.Fingerprint, sessionID)

	changed, err := r.orders.CancelOrder(ctx, *orderID, "cancelled by payment provider")
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	if !changed {
		log.Printf("cancellation for order %s in terminal state, ignoring", orderID)
	}
	return nil
}

func (r *Reconciler) invalidate(ctx context.Context, fingerprint, sessionID string) {
	if err := r.sessions.Delete(ctx, fingerprint); err != nil {
		log.Printf("invalidate session cache for %s (session %s): %v", fingerprint, sessionID, err)
	}
}

func (r *Reconciler) invalidateBySessionID(ctx context.Context, sessionID string) {
	fingerprint, err := r.sessions.FingerprintBySessionID(ctx, sessionID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return // entry already gone or expired, nothing to invalidate
	}
	if err != nil {
		log.Printf("resolve fingerprint for session %s: %v", sessionID, err)
		return
	}
	r.invalidate(ctx, fingerprint, sessionID)
}
