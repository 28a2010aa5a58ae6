package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avask/shopflow/internal/domain"
	"github.com/avask/shopflow/internal/orderstore"
	"github.com/avask/shopflow/internal/payment"
)

func testSnapshot() *domain.CartSnapshot {
	return &domain.CartSnapshot{
		OwnerID: "owner-1",
		Items: []domain.SnapshotItem{
			{ProductID: "rose-box", ProductName: "Rose Box", Quantity: 2, UnitPrice: 1000, LineTotal: 2000},
		},
		TotalAmount: 2000,
		Currency:    "USD",
		CapturedAt:  time.Now(),
	}
}

func newTestBroker() (*Broker, *memSessionCache, *memOrderRepo, *countingProvider) {
	sessions := newMemSessionCache()
	orders := newMemOrderRepo()
	provider := &countingProvider{}
	broker := NewBroker(sessions, orders, provider)
	broker.retryBackoff = time.Millisecond
	return broker, sessions, orders, provider
}

func TestGetOrCreateSession_EmptyCart(t *testing.T) {
	broker, _, _, _ := newTestBroker()

	_, err := broker.GetOrCreateSession(context.Background(), &domain.CartSnapshot{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestGetOrCreateSession_CreatesOnce(t *testing.T) {
	broker, sessions, orders, provider := newTestBroker()

	result, err := broker.GetOrCreateSession(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, "ps_1", result.Session.SessionID)
	assert.Equal(t, int64(2000), result.Session.Amount)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, 1, orders.countByStatus(domain.OrderStatusPending))

	// Claim must not linger after a successful create.
	assert.False(t, sessions.claimHeld(result.Session.Fingerprint))

	second, err := broker.GetOrCreateSession(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "ps_1", second.Session.SessionID)
	assert.Equal(t, 1, provider.callCount())
}

func TestGetOrCreateSession_ConcurrentDuplicates(t *testing.T) {
	broker, _, orders, provider := newTestBroker()
	provider.delay = 10 * time.Millisecond // widen the race window

	const n = 50
	results := make([]*Result, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = broker.GetOrCreateSession(context.Background(), testSnapshot())
		}(i)
	}
	wg.Wait()

	fromCache := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "ps_1", results[i].Session.SessionID)
		if results[i].FromCache {
			fromCache++
		}
	}

	assert.Equal(t, 1, provider.callCount(), "exactly one provider session must be created")
	assert.Equal(t, 1, orders.countByStatus(domain.OrderStatusPending), "exactly one pending order")
	assert.GreaterOrEqual(t, fromCache, n-1)
}

func TestGetOrCreateSession_ProviderFailureReleasesClaim(t *testing.T) {
	broker, sessions, orders, provider := newTestBroker()
	provider.err = payment.ErrProviderUnavailable

	snapshot := testSnapshot()
	_, err := broker.GetOrCreateSession(context.Background(), snapshot)
	require.ErrorIs(t, err, payment.ErrProviderUnavailable)

	fingerprint := Fingerprint(snapshot.OwnerID, snapshot.Items)
	assert.False(t, sessions.claimHeld(fingerprint), "failed create must release the claim")
	assert.Equal(t, 1, orders.countByStatus(domain.OrderStatusCancelled), "draft order must be cancelled")

	// A follow-up request succeeds instead of being permanently blocked.
	provider.err = nil
	result, err := broker.GetOrCreateSession(context.Background(), snapshot)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}

func TestGetOrCreateSession_ExpiredSessionReplaced(t *testing.T) {
	broker, _, orders, provider := newTestBroker()

	now := time.Now()
	broker.now = func() time.Time { return now }

	first, err := broker.GetOrCreateSession(context.Background(), testSnapshot())
	require.NoError(t, err)

	// Session TTL elapses with no completion: next access treats it as
	// implicitly cancelled and mints a fresh one.
	now = now.Add(31 * time.Minute)

	second, err := broker.GetOrCreateSession(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	assert.NotEqual(t, first.Session.SessionID, second.Session.SessionID)
	assert.Equal(t, 2, provider.callCount())

	expired, err := orders.GetOrderByID(context.Background(), first.Session.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, expired.Status)
}

func TestGetOrCreateSession_ReclaimsAbandonedOrderAfterCacheLoss(t *testing.T) {
	broker, sessions, orders, provider := newTestBroker()

	snapshot := testSnapshot()
	fingerprint := Fingerprint(snapshot.OwnerID, snapshot.Items)

	// A pending draft whose cache entry is gone (eviction, restart) and
	// whose session TTL has long elapsed. Nothing will ever complete it.
	abandoned := &domain.Order{
		ID:          uuid.New(),
		OwnerID:     snapshot.OwnerID,
		Fingerprint: fingerprint,
		TotalAmount: snapshot.TotalAmount,
		Currency:    snapshot.Currency,
		Status:      domain.OrderStatusPending,
		CreatedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, orders.CreateOrder(context.Background(), abandoned))

	result, err := broker.GetOrCreateSession(context.Background(), snapshot)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, 1, orders.countByStatus(domain.OrderStatusPending))
	assert.Equal(t, 1, orders.countByStatus(domain.OrderStatusCancelled))
	assert.False(t, sessions.claimHeld(fingerprint))

	reclaimed, err := orders.GetOrderByID(context.Background(), abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, reclaimed.Status)
}

func TestGetOrCreateSession_LiveUncachedOrderStaysPending(t *testing.T) {
	broker, sessions, orders, provider := newTestBroker()

	snapshot := testSnapshot()
	fingerprint := Fingerprint(snapshot.OwnerID, snapshot.Items)

	// The fingerprint slot is held by a recent pending draft we lost the
	// cache entry for. It may still complete, so it must not be cancelled.
	live := &domain.Order{
		ID:          uuid.New(),
		OwnerID:     snapshot.OwnerID,
		Fingerprint: fingerprint,
		TotalAmount: snapshot.TotalAmount,
		Currency:    snapshot.Currency,
		Status:      domain.OrderStatusPending,
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	require.NoError(t, orders.CreateOrder(context.Background(), live))

	_, err := broker.GetOrCreateSession(context.Background(), snapshot)
	require.ErrorIs(t, err, orderstore.ErrDuplicateFingerprint)
	assert.Equal(t, 0, provider.callCount())
	assert.Equal(t, 1, orders.countByStatus(domain.OrderStatusPending))
	assert.False(t, sessions.claimHeld(fingerprint), "failed create must release the claim")
}

func TestGetOrCreateSession_ClaimContentionGivesUp(t *testing.T) {
	broker, sessions, _, _ := newTestBroker()
	broker.maxRetries = 2

	snapshot := testSnapshot()
	fingerprint := Fingerprint(snapshot.OwnerID, snapshot.Items)

	// Simulate a stuck holder that never populates the cache.
	held, err := sessions.Claim(context.Background(), fingerprint, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = broker.GetOrCreateSession(context.Background(), snapshot)
	assert.ErrorIs(t, err, ErrClaimContended)
}
