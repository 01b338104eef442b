package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultTolerance bounds how old a signed event may be.
const DefaultTolerance = webhook.DefaultTolerance

// ParseEvent verifies the Stripe-Signature header against the raw payload and only then decodes it.
// Event kinds this service does not handle are returned with their raw type and no intent fields.
// A verified event whose payment intent cannot be decoded is returned with Invalid set, not as an error,
// so the caller can acknowledge it instead of having it redelivered forever.
func ParseEvent(payload []byte, header, secret string, tolerance time.Duration) (*payment.Event, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	evt, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrInvalidSignature, err)
	}

	out := &payment.Event{ID: evt.ID, Kind: payment.EventKind(evt.Type)}
	switch out.Kind {
	case payment.EventSucceeded, payment.EventFailed, payment.EventCanceled:
	default:
		return out, nil
	}
	if evt.Data == nil {
		out.Invalid = "event has no data"
		return out, nil
	}

	var pi stripeapi.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		out.Invalid = fmt.Sprintf("decode payment intent: %v", err)
		return out, nil
	}
	if pi.ID == "" {
		out.Invalid = "payment intent has no id"
		return out, nil
	}
	out.TransactionID = pi.ID
	out.Amount = pi.AmountReceived
	out.Currency = string(pi.Currency)
	out.Metadata = pi.Metadata
	if pi.LastPaymentError != nil {
		out.FailureReason = pi.LastPaymentError.Msg
	}
	if pi.CancellationReason != "" && out.FailureReason == "" {
		out.FailureReason = string(pi.CancellationReason)
	}
	return out, nil
}

func toIntent(pi *stripeapi.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:             pi.ID,
		ClientSecret:   pi.ClientSecret,
		Amount:         pi.Amount,
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
		Status:         payment.IntentStatus(pi.Status),
		Metadata:       pi.Metadata,
	}
}
