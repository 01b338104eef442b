// Package paysim is a local stand-in for the payment processor. It keeps intents in memory
// and emits Stripe-shaped signed events so the webhook path is exercised end to end.
package paysim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	stripeproc "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrUnknownIntent = errors.New("paysim: unknown payment intent")
	ErrIntentClosed  = errors.New("paysim: payment intent already finalised")
	// ErrUnavailable is returned by CreateIntent while the simulator is set to fail.
	ErrUnavailable = errors.New("paysim: processor unavailable")
)

type Simulator struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	secret      string
	intents     map[string]*payment.Intent
	idempotency map[string]string
	failCreate  bool
}

var _ payment.Processor = (*Simulator)(nil)

func New(webhookSecret string, successRate float64) *Simulator {
	if successRate < 0 || successRate > 1 {
		successRate = 0.7
	}
	return &Simulator{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		secret:      webhookSecret,
		intents:     make(map[string]*payment.Intent),
		idempotency: make(map[string]string),
	}
}

// FailCreate makes CreateIntent return ErrUnavailable until switched off.
func (s *Simulator) FailCreate(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = fail
}

func (s *Simulator) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate {
		return nil, ErrUnavailable
	}
	if req.IdempotencyKey != "" {
		if id, ok := s.idempotency[req.IdempotencyKey]; ok {
			return cloneIntent(s.intents[id]), nil
		}
	}

	id := "pi_sim_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	in := &payment.Intent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%d", id, s.random.Int63()),
		Amount:       req.Amount,
		Currency:     strings.ToLower(req.Currency),
		Status:       payment.IntentRequiresPaymentMethod,
		Metadata:     meta,
	}
	s.intents[id] = in
	if req.IdempotencyKey != "" {
		s.idempotency[req.IdempotencyKey] = id
	}
	return cloneIntent(in), nil
}

func (s *Simulator) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[id]
	if !ok {
		return nil, ErrUnknownIntent
	}
	return cloneIntent(in), nil
}

func (s *Simulator) CancelIntent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[id]
	if !ok {
		return ErrUnknownIntent
	}
	if in.Status == payment.IntentSucceeded {
		return ErrIntentClosed
	}
	in.Status = payment.IntentCanceled
	return nil
}

func (s *Simulator) VerifyEvent(payload []byte, signature string) (*payment.Event, error) {
	return stripeproc.ParseEvent(payload, signature, s.secret, 0)
}

// SetStatus forces an intent into status without emitting an event.
func (s *Simulator) SetStatus(id string, status payment.IntentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[id]
	if !ok {
		return ErrUnknownIntent
	}
	in.Status = status
	if status == payment.IntentSucceeded {
		in.AmountReceived = in.Amount
	}
	return nil
}

// Settle decides the outcome of an intent at the configured success rate and returns the signed event.
func (s *Simulator) Settle(id string) ([]byte, string, error) {
	s.mu.Lock()
	ok := s.random.Float64() < s.successRate
	s.mu.Unlock()
	if ok {
		return s.Complete(id, payment.EventSucceeded, nil)
	}
	return s.Complete(id, payment.EventFailed, nil)
}

// Complete finalises an intent with kind and returns the signed webhook payload and header.
// captured overrides the amount reported as received on success events.
func (s *Simulator) Complete(id string, kind payment.EventKind, captured *int64) ([]byte, string, error) {
	s.mu.Lock()
	in, ok := s.intents[id]
	if !ok {
		s.mu.Unlock()
		return nil, "", ErrUnknownIntent
	}
	if in.Status == payment.IntentSucceeded || in.Status == payment.IntentCanceled {
		s.mu.Unlock()
		return nil, "", ErrIntentClosed
	}
	obj := intentObject{
		ID:       in.ID,
		Object:   "payment_intent",
		Amount:   in.Amount,
		Currency: in.Currency,
		Metadata: in.Metadata,
	}
	switch kind {
	case payment.EventSucceeded:
		in.Status = payment.IntentSucceeded
		in.AmountReceived = in.Amount
		if captured != nil {
			in.AmountReceived = *captured
		}
		obj.AmountReceived = in.AmountReceived
	case payment.EventFailed:
		in.Status = payment.IntentRequiresPaymentMethod
		obj.LastPaymentError = &paymentError{Message: "Your card was declined."}
	case payment.EventCanceled:
		in.Status = payment.IntentCanceled
		obj.CancellationReason = "abandoned"
	default:
		s.mu.Unlock()
		return nil, "", fmt.Errorf("paysim: unsupported event kind %q", kind)
	}
	obj.Status = string(in.Status)
	s.mu.Unlock()

	return s.Sign(string(kind), obj)
}

// Sign wraps object in an event envelope of the given type and signs it with the webhook secret.
func (s *Simulator) Sign(eventType string, object any) ([]byte, string, error) {
	raw, err := json.Marshal(eventEnvelope{
		ID:      "evt_sim_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Object:  "event",
		Type:    eventType,
		Created: time.Now().Unix(),
		Data:    eventData{Object: object},
	})
	if err != nil {
		return nil, "", fmt.Errorf("paysim: encode event: %w", err)
	}
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: raw, Secret: s.secret})
	return sp.Payload, sp.Header, nil
}

type eventEnvelope struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    eventData `json:"data"`
}

type eventData struct {
	Object any `json:"object"`
}

type intentObject struct {
	ID                 string            `json:"id"`
	Object             string            `json:"object"`
	Amount             int64             `json:"amount"`
	AmountReceived     int64             `json:"amount_received"`
	Currency           string            `json:"currency"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	LastPaymentError   *paymentError     `json:"last_payment_error,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
}

type paymentError struct {
	Message string `json:"message"`
}

func cloneIntent(in *payment.Intent) *payment.Intent {
	if in == nil {
		return nil
	}
	c := *in
	c.Metadata = make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
