package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avask/shopflow/internal/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewSnapshotRedisCache(client)
	ctx := context.Background()

	snapshot := &domain.CartSnapshot{
		OwnerID: "owner-1",
		Items: []domain.SnapshotItem{
			{ProductID: "rose-box", Quantity: 2, UnitPrice: 1000, LineTotal: 2000},
		},
		TotalAmount: 2000,
		Currency:    "USD",
	}

	require.NoError(t, c.Set(ctx, "owner-1", snapshot))

	got, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TotalAmount)
	assert.Len(t, got.Items, 1)
}

func TestSnapshotCache_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewSnapshotRedisCache(client)

	got, err := c.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestSnapshotCache_DeleteInvalidates(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewSnapshotRedisCache(client)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "owner-1", &domain.CartSnapshot{OwnerID: "owner-1", TotalAmount: 500}))
	require.NoError(t, c.Delete(ctx, "owner-1"))

	_, err := c.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSnapshotCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewSnapshotRedisCache(client)

	mr.Set(snapshotKey("owner-1"), "{not json")

	_, err := c.Get(context.Background(), "owner-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func testSession(fingerprint string) *domain.CheckoutSession {
	now := time.Now().Truncate(time.Second)
	return &domain.CheckoutSession{
		SessionID:    "ps_123",
		ClientSecret: "secret_123",
		OrderID:      uuid.New(),
		Fingerprint:  fingerprint,
		Amount:       2000,
		Currency:     "USD",
		CreatedAt:    now,
		ExpiresAt:    now.Add(30 * time.Minute),
	}
}

func TestSessionCache_RoundTripAndIndex(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewSessionRedisCache(client)
	ctx := context.Background()

	session := testSession("fp-1")
	require.NoError(t, c.Set(ctx, "fp-1", session, 30*time.Minute))

	got, err := c.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "ps_123", got.SessionID)
	assert.Equal(t, session.OrderID, got.OrderID)

	fingerprint, err := c.FingerprintBySessionID(ctx, "ps_123")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", fingerprint)
}

func TestSessionCache_EntryOutlivesSessionTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewSessionRedisCache(client)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-1", testSession("fp-1"), time.Minute))

	// Just past the session TTL the entry must still be readable: the
	// broker needs to observe the expired session to cancel its draft
	// order. Only after the grace window does Redis drop it.
	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "ps_123", got.SessionID)

	mr.FastForward(sessionEvictionGrace)

	_, err = c.Get(ctx, "fp-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.FingerprintBySessionID(ctx, "ps_123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSessionCache_DeleteRemovesIndex(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewSessionRedisCache(client)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp-1", testSession("fp-1"), 30*time.Minute))
	require.NoError(t, c.Delete(ctx, "fp-1"))

	_, err := c.Get(ctx, "fp-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// The reverse index must go with the entry, or a late provider
	// callback would resolve a session id to a vacated fingerprint.
	_, err = c.FingerprintBySessionID(ctx, "ps_123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSessionCache_ClaimIsExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewSessionRedisCache(client)
	ctx := context.Background()

	first, err := c.Claim(ctx, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.Claim(ctx, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second, "second concurrent claim must lose")

	require.NoError(t, c.ReleaseClaim(ctx, "fp-1"))

	third, err := c.Claim(ctx, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, third, "released claim must be winnable again")
}

func TestSessionCache_ClaimExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewSessionRedisCache(client)
	ctx := context.Background()

	held, err := c.Claim(ctx, "fp-1", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	// A crashed winner must not block the fingerprint forever.
	mr.FastForward(2 * time.Minute)

	again, err := c.Claim(ctx, "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestCalendarCache_RoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewCalendarRedisCache(client)
	ctx := context.Background()

	payload, err := json.Marshal([]string{"2026-09-01", "2026-09-02"})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "metro:2026-09", payload))

	got, err := c.Get(ctx, "metro:2026-09")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Calendars go stale after the multi-hour TTL.
	mr.FastForward(7 * time.Hour)
	_, err = c.Get(ctx, "metro:2026-09")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
