package payment

import (
	"context"
	"errors"
)

// ErrProviderUnavailable wraps any transport/provider failure. Always
// retryable from the caller's point of view; the broker releases its claim
// before propagating it.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

type CreateSessionRequest struct {
	Amount   int64 // minor units
	Currency string
	Metadata map[string]string
}

type ProviderSession struct {
	SessionID    string
	ClientSecret string
}

// Provider is the opaque remote payment service: it issues a client
// secret for an amount and later reports completion or cancellation via a
// callback the reconciler consumes.
type Provider interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*ProviderSession, error)
}
