package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avask/shopflow/internal/domain"
)

func NewSnapshotRedisCache(client *redis.Client) *SnapshotRedisCache {
	return &SnapshotRedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type SnapshotRedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *SnapshotRedisCache) Get(ctx context.Context, ownerID string) (*domain.CartSnapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snapshot domain.CartSnapshot
	if err2 := json.Unmarshal(data, &snapshot); err2 != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err2)
	}
	return &snapshot, nil
}

func (r *SnapshotRedisCache) Set(ctx context.Context, ownerID string, snapshot *domain.CartSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	// Jitter spreads expiry so a burst of carts cached together does not
	// expire together.
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := r.client.Set(ctx, snapshotKey(ownerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *SnapshotRedisCache) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, snapshotKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func snapshotKey(ownerID string) string {
	return fmt.Sprintf("cart:snapshot:%s", ownerID)
}

func NewSessionRedisCache(client *redis.Client) *SessionRedisCache {
	return &SessionRedisCache{client: client}
}

type SessionRedisCache struct {
	client *redis.Client
}

// sessionEvictionGrace keeps the Redis entry around past the session's
// logical expiry. The broker cancels the draft order when it reads an
// expired entry; evicting the key at the exact expiry instant would
// leave the order pending with nothing to observe it.
const sessionEvictionGrace = 10 * time.Minute

func (r *SessionRedisCache) Get(ctx context.Context, fingerprint string) (*domain.CheckoutSession, error) {
	data, err := r.client.Get(ctx, sessionKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session domain.CheckoutSession
	if err2 := json.Unmarshal(data, &session); err2 != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err2)
	}
	return &session, nil
}

func (r *SessionRedisCache) Set(ctx context.Context, fingerprint string, session *domain.CheckoutSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(fingerprint), data, ttl+sessionEvictionGrace)
	// Reverse index so provider callbacks carrying only a session id can
	// still invalidate the fingerprint entry.
	pipe.Set(ctx, sessionIndexKey(session.SessionID), fingerprint, ttl+sessionEvictionGrace)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *SessionRedisCache) Delete(ctx context.Context, fingerprint string) error {
	keys := []string{sessionKey(fingerprint)}
	session, err := r.Get(ctx, fingerprint)
	if err == nil {
		keys = append(keys, sessionIndexKey(session.SessionID))
	} else if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *SessionRedisCache) FingerprintBySessionID(ctx context.Context, sessionID string) (string, error) {
	fingerprint, err := r.client.Get(ctx, sessionIndexKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return fingerprint, nil
}

// Claim atomically marks the fingerprint as "session creation in
// progress". Exactly one concurrent caller gets true; everyone else must
// wait for the winner to populate the session entry.
func (r *SessionRedisCache) Claim(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimKey(fingerprint), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (r *SessionRedisCache) ReleaseClaim(ctx context.Context, fingerprint string) error {
	if err := r.client.Del(ctx, claimKey(fingerprint)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(fingerprint string) string {
	return fmt.Sprintf("checkout:session:%s", fingerprint)
}

func sessionIndexKey(sessionID string) string {
	return fmt.Sprintf("checkout:sessionidx:%s", sessionID)
}

func claimKey(fingerprint string) string {
	return fmt.Sprintf("checkout:claim:%s", fingerprint)
}

func NewCalendarRedisCache(client *redis.Client) *CalendarRedisCache {
	return &CalendarRedisCache{
		client: client,
		ttl:    6 * time.Hour,
	}
}

type CalendarRedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *CalendarRedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, calendarKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *CalendarRedisCache) Set(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, calendarKey(key), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func calendarKey(key string) string {
	return fmt.Sprintf("delivery:calendar:%s", key)
}
