package payment

import (
	"context"
	"errors"
)

var ErrInvalidSignature = errors.New("payment: invalid event signature")

// Metadata keys attached to every intent so events can be correlated without a lookup.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
)

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

type IntentRequest struct {
	Amount         int64
	Currency       string
	PaymentMethod  string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID             string
	ClientSecret   string
	Amount         int64
	AmountReceived int64
	Currency       string
	Status         IntentStatus
	Metadata       map[string]string
}

type EventKind string

const (
	EventSucceeded EventKind = "payment_intent.succeeded"
	EventFailed    EventKind = "payment_intent.payment_failed"
	EventCanceled  EventKind = "payment_intent.canceled"
)

// Event is a verified processor notification about one intent.
type Event struct {
	ID            string
	Kind          EventKind
	TransactionID string
	// Amount is the amount the processor reports as captured.
	Amount        int64
	Currency      string
	Metadata      map[string]string
	FailureReason string
	// Invalid says why a verified event could not be decoded; empty when it could.
	Invalid string
}

// Processor is the external payment processor.
type Processor interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
	// VerifyEvent authenticates the raw payload before any business field is read.
	VerifyEvent(payload []byte, signature string) (*Event, error)
}
