package cache

import (
	"context"
	"errors"
	"time"

	"github.com/avask/shopflow/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// SnapshotCache memoizes priced cart snapshots per owner. Every mutating
// cart operation must Delete the owner's entry as part of the same logical
// operation.
type SnapshotCache interface {
	Get(ctx context.Context, ownerID string) (*domain.CartSnapshot, error)
	Set(ctx context.Context, ownerID string, snapshot *domain.CartSnapshot) error
	Delete(ctx context.Context, ownerID string) error
}

// SessionCache holds live checkout sessions keyed by cart fingerprint,
// plus the claim keys the broker uses to serialize concurrent session
// creation. Claim must be an atomic set-if-absent; a read-then-write pair
// here would reintroduce the duplicate-session race.
type SessionCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.CheckoutSession, error)
	Set(ctx context.Context, fingerprint string, session *domain.CheckoutSession, ttl time.Duration) error
	Delete(ctx context.Context, fingerprint string) error

	// FingerprintBySessionID resolves a provider session id back to the
	// fingerprint it was cached under. Used by the reconciler when a
	// cancellation callback arrives without an order id.
	FingerprintBySessionID(ctx context.Context, sessionID string) (string, error)

	Claim(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, fingerprint string) error
}

// CalendarCache memoizes delivery calendars per (month, year, zone).
// Holiday and working-day facts do not change within a few hours, so
// entries carry a long TTL.
type CalendarCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
}
