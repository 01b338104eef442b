// Package stripe adapts the Stripe PaymentIntents API to payment.Processor.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Tolerance     time.Duration
	// Backends overrides the HTTP backends; nil uses Stripe's.
	Backends *stripeapi.Backends
}

type Processor struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

var _ payment.Processor = (*Processor)(nil)

func New(cfg Config) (*Processor, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, cfg.Backends)
	return &Processor{api: api, webhookSecret: cfg.WebhookSecret, tolerance: cfg.Tolerance}, nil
}

func (p *Processor) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(req.Amount),
		Currency: stripeapi.String(req.Currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripeapi.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (p *Processor) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve payment intent %s: %w", id, err)
	}
	return toIntent(pi), nil
}

func (p *Processor) CancelIntent(ctx context.Context, id string) error {
	params := &stripeapi.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := p.api.PaymentIntents.Cancel(id, params); err != nil {
		return fmt.Errorf("stripe: cancel payment intent %s: %w", id, err)
	}
	return nil
}

func (p *Processor) VerifyEvent(payload []byte, signature string) (*payment.Event, error) {
	return ParseEvent(payload, signature, p.webhookSecret, p.tolerance)
}
