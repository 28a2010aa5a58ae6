package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

type StripeProvider struct {
	timeout time.Duration
}

func NewStripeProvider(apiKey string, timeout time.Duration) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{timeout: timeout}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req CreateSessionRequest) (*ProviderSession, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return &ProviderSession{
		SessionID:    intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}
