package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/avask/shopflow/internal/cache"
	"github.com/avask/shopflow/internal/domain"
	"github.com/avask/shopflow/internal/orderstore"
	"github.com/avask/shopflow/internal/payment"
)

var (
	ErrEmptyCart = errors.New("cart is empty, nothing to check out")

	// ErrClaimContended means another request is creating the session
	// right now and it did not appear in the cache within the retry
	// budget. Retryable.
	ErrClaimContended = errors.New("checkout session creation in progress, retry")
)

type Result struct {
	Session   *domain.CheckoutSession
	FromCache bool
}

// Broker guarantees at most one live provider session and at most one
// pending order per cart fingerprint, no matter how many identical
// requests race. The fast path is a cache hit; the slow path serializes
// through an atomic claim on the fingerprint.
type Broker struct {
	sessions cache.SessionCache
	orders   orderstore.OrderRepository
	provider payment.Provider

	sessionTTL   time.Duration
	claimTTL     time.Duration
	retryBackoff time.Duration
	maxRetries   int
	now          func() time.Time
}

func NewBroker(sessions cache.SessionCache, orders orderstore.OrderRepository, provider payment.Provider) *Broker {
	return &Broker{
		sessions:     sessions,
		orders:       orders,
		provider:     provider,
		sessionTTL:   30 * time.Minute,
		claimTTL:     15 * time.Second,
		retryBackoff: 50 * time.Millisecond,
		maxRetries:   20,
		now:          time.Now,
	}
}

// GetOrCreateSession returns the live session for the snapshot's
// fingerprint, creating it if none exists. Concurrent duplicate calls all
// receive the same session; exactly one of them talks to the provider.
func (b *Broker) GetOrCreateSession(ctx context.Context, snapshot *domain.CartSnapshot) (*Result, error) {
	if snapshot.Empty() {
		return nil, ErrEmptyCart
	}

	fingerprint := Fingerprint(snapshot.OwnerID, snapshot.Items)

	for attempt := 0; ; attempt++ {
		session, err := b.liveSession(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return &Result{Session: session, FromCache: true}, nil
		}

		claimed, err := b.sessions.Claim(ctx, fingerprint, b.claimTTL)
		if err != nil {
			return nil, fmt.Errorf("claim fingerprint: %w", err)
		}
		if claimed {
			return b.createSession(ctx, fingerprint, snapshot)
		}

		// Lost the race: the winner populates the cache shortly. Bounded
		// backoff, never an unbounded spin.
		if attempt >= b.maxRetries {
			return nil, ErrClaimContended
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.retryBackoff):
		}
	}
}

// liveSession fetches the cached session, lazily cancelling one whose TTL
// elapsed before anyone completed it.
func (b *Broker) liveSession(ctx context.Context, fingerprint string) (*domain.CheckoutSession, error) {
	session, err := b.sessions.Get(ctx, fingerprint)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	if !session.Expired(b.now()) {
		return session, nil
	}

	// Expired and never finalized: implicitly cancelled on access.
	if err := b.sessions.Delete(ctx, fingerprint); err != nil {
		log.Printf("delete expired session %s: %v", session.SessionID, err)
	}
	if _, err := b.orders.CancelOrder(ctx, session.OrderID, "checkout session expired"); err != nil && !errors.Is(err, orderstore.ErrOrderNotFound) {
		log.Printf("cancel order %s for expired session: %v", session.OrderID, err)
	}
	return nil, nil
}

// createSession runs the winner's path: draft order, provider call, cache
// populate, claim release. Any failure releases the claim so a follow-up
// request is not permanently blocked.
func (b *Broker) createSession(ctx context.Context, fingerprint string, snapshot *domain.CartSnapshot) (*Result, error) {
	order := &domain.Order{
		ID:          uuid.New(),
		OwnerID:     snapshot.OwnerID,
		Fingerprint: fingerprint,
		TotalAmount: snapshot.TotalAmount,
		Currency:    snapshot.Currency,
		Status:      domain.OrderStatusPending,
		Items:       orderItems(snapshot),
	}

	if err := b.createDraftOrder(ctx, order); err != nil {
		b.releaseClaim(fingerprint)
		return nil, err
	}

	providerSession, err := b.provider.CreateSession(ctx, payment.CreateSessionRequest{
		Amount:   snapshot.TotalAmount,
		Currency: snapshot.Currency,
		Metadata: map[string]string{
			"order_id":    order.ID.String(),
			"fingerprint": fingerprint,
		},
	})
	if err != nil {
		b.releaseClaim(fingerprint)
		if _, cancelErr := b.orders.CancelOrder(ctx, order.ID, "provider session creation failed"); cancelErr != nil {
			log.Printf("cancel draft order %s: %v", order.ID, cancelErr)
		}
		return nil, fmt.Errorf("create provider session: %w", err)
	}

	now := b.now()
	session := &domain.CheckoutSession{
		SessionID:    providerSession.SessionID,
		ClientSecret: providerSession.ClientSecret,
		OrderID:      order.ID,
		Fingerprint:  fingerprint,
		Amount:       snapshot.TotalAmount,
		Currency:     snapshot.Currency,
		CreatedAt:    now,
		ExpiresAt:    now.Add(b.sessionTTL),
	}

	if err := b.sessions.Set(ctx, fingerprint, session, b.sessionTTL); err != nil {
		// The provider session exists; losing the cache entry only costs
		// dedup, so return it anyway. The claim must still be released.
		log.Printf("cache session %s: %v", session.SessionID, err)
	}
	b.releaseClaim(fingerprint)

	return &Result{Session: session, FromCache: false}, nil
}

// createDraftOrder inserts the PENDING draft. When the unique index
// rejects the insert, the fingerprint slot is held by an earlier pending
// order whose cache entry is gone (Redis eviction, restart). If that
// order outlived the session TTL it was abandoned: cancel it and retry
// the insert once. A younger holder means a genuinely live session we
// lost sight of, so the conflict propagates as retryable.
func (b *Broker) createDraftOrder(ctx context.Context, order *domain.Order) error {
	err := b.orders.CreateOrder(ctx, order)
	if !errors.Is(err, orderstore.ErrDuplicateFingerprint) {
		if err != nil {
			return fmt.Errorf("create draft order: %w", err)
		}
		return nil
	}

	stale, findErr := b.orders.FindPendingOrderByFingerprint(ctx, order.Fingerprint)
	if errors.Is(findErr, orderstore.ErrOrderNotFound) {
		// Holder vanished between insert and lookup; one more try.
		if retryErr := b.orders.CreateOrder(ctx, order); retryErr != nil {
			return fmt.Errorf("create draft order: %w", retryErr)
		}
		return nil
	}
	if findErr != nil {
		return fmt.Errorf("find pending order for fingerprint: %w", findErr)
	}

	if b.now().Sub(stale.CreatedAt) < b.sessionTTL {
		return fmt.Errorf("create draft order: %w", orderstore.ErrDuplicateFingerprint)
	}

	if _, cancelErr := b.orders.CancelOrder(ctx, stale.ID, "checkout session expired"); cancelErr != nil && !errors.Is(cancelErr, orderstore.ErrOrderNotFound) {
		return fmt.Errorf("cancel abandoned order %s: %w", stale.ID, cancelErr)
	}
	log.Printf("cancelled abandoned pending order %s to free fingerprint", stale.ID)

	if retryErr := b.orders.CreateOrder(ctx, order); retryErr != nil {
		return fmt.Errorf("create draft order after reclaim: %w", retryErr)
	}
	return nil
}

func (b *Broker) releaseClaim(fingerprint string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.sessions.ReleaseClaim(ctx, fingerprint); err != nil {
		log.Printf("release claim %s: %v", fingerprint, err)
	}
}

func orderItems(snapshot *domain.CartSnapshot) []domain.OrderItem {
	items := make([]domain.OrderItem, len(snapshot.Items))
	for i, item := range snapshot.Items {
		items[i] = domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		}
	}
	return items
}
