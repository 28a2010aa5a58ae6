package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutSession is the cached handle for a provider-issued payment
// session. It is keyed by the cart fingerprint, not by any client id, so
// duplicate requests for the same cart converge on the same session.
type CheckoutSession struct {
	SessionID    string    `json:"session_id"`
	ClientSecret string    `json:"client_secret"`
	OrderID      uuid.UUID `json:"order_id"`
	Fingerprint  string    `json:"fingerprint"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *CheckoutSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
