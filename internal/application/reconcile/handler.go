package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	reconcileService = "reconcile-service"
	useCaseWebhook   = "payment.reconcile_event"
)

type Command struct {
	Payload   []byte
	Signature string
}

type Result struct {
	EventID       string
	Kind          payment.EventKind
	TransactionID string
	Outcome       Outcome
}

// Handler applies processor events to payment attempts and orders.
// Every verified event is acknowledged unless a store write fails, so the processor only retries what can succeed later.
type Handler struct {
	settler
	events observability.Counter // payment_events_total{kind,outcome}
}

var _ application.UseCase[Command, *Result] = (*Handler)(nil)

func NewHandler(deps Deps) *Handler {
	in := application.NewInstrumentation(deps.Tel, reconcileService)
	metrics := observability.NopMetrics()
	if deps.Tel != nil {
		metrics = deps.Tel.Metrics()
	}
	return &Handler{
		settler: settler{deps: deps, in: in},
		events:  metrics.Counter(observability.MPaymentEvents),
	}
}

func (h *Handler) Execute(ctx context.Context, cmd Command) (_ *Result, err error) {
	ctx, run := h.in.Start(ctx, useCaseWebhook, "HandleProcessorEvent")
	defer func() { run.End(err) }()
	span := run.Span()

	evt, err := h.deps.Processor.VerifyEvent(cmd.Payload, cmd.Signature)
	if err != nil {
		run.Fail("INVALID_SIGNATURE")
		h.count("unverified", "rejected")
		return nil, apperr.Wrap(apperr.ErrSecurity, err)
	}
	res := &Result{EventID: evt.ID, Kind: evt.Kind, TransactionID: evt.TransactionID}
	run.With(
		observability.F("event_id", evt.ID),
		observability.F("event_kind", string(evt.Kind)),
	)
	span.SetAttributes(
		attribute.String("payment.event_id", evt.ID),
		attribute.String("payment.event_kind", string(evt.Kind)),
	)
	defer func() {
		if res.Outcome != "" {
			h.count(string(evt.Kind), string(res.Outcome))
		}
	}()

	var target payment.Status
	switch evt.Kind {
	case payment.EventSucceeded:
		target = payment.StatusPaid
	case payment.EventFailed:
		target = payment.StatusFailed
	case payment.EventCanceled:
		target = payment.StatusCanceled
	default:
		run.Status("IGNORED_EVENT_KIND")
		res.Outcome = OutcomeIgnored
		return res, nil
	}
	if evt.Invalid != "" || evt.TransactionID == "" {
		// Verified but unusable: acknowledge so the processor stops redelivering it.
		run.Status("EVENT_MALFORMED")
		logctx.FromOr(ctx, h.in.Logger()).Error("payment_event_malformed",
			observability.F("event_id", evt.ID),
			observability.F("event_kind", string(evt.Kind)),
			observability.F("reason", evt.Invalid),
		)
		res.Outcome = OutcomeMalformed
		return res, nil
	}
	run.With(observability.F("transaction_id", evt.TransactionID))
	span.SetAttributes(attribute.String("payment.transaction_id", evt.TransactionID))

	attempt, err := h.deps.Payments.FindByTransactionID(ctx, evt.TransactionID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			run.Status("UNTRACKED_TRANSACTION")
			res.Outcome = OutcomeUntracked
			return res, nil
		}
		run.Fail("ATTEMPT_LOOKUP_FAILED")
		return nil, fmt.Errorf("reconcile: find attempt: %w", err)
	}
	run.With(observability.F("order_id", attempt.OrderID))
	span.SetAttributes(attribute.String("order.id", attempt.OrderID))

	if attempt.Status.Terminal() {
		if target == payment.StatusPaid && attempt.Status != payment.StatusPaid {
			run.Status("CAPTURED_AFTER_FAILURE")
			res.Outcome = h.flagLateCapture(ctx, attempt, evt)
			return res, nil
		}
		run.Status("DUPLICATE_EVENT")
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	report := Report{
		TransactionID: evt.TransactionID,
		Amount:        evt.Amount,
		Currency:      evt.Currency,
		Metadata:      evt.Metadata,
		Reason:        evt.FailureReason,
	}
	var outcome Outcome
	if target == payment.StatusPaid {
		outcome, err = h.succeed(ctx, attempt, report)
	} else {
		reason := evt.FailureReason
		if reason == "" {
			reason = string(evt.Kind)
		}
		if target == payment.StatusFailed {
			// A failed intent can still be paid with the same client secret until it is canceled.
			if err := h.closeIntent(ctx, attempt); err != nil {
				run.Fail("PROCESSOR_CANCEL_FAILED")
				return nil, apperr.Wrap(apperr.ErrExternal, fmt.Errorf("reconcile: cancel failed intent %s: %w", attempt.TransactionID, err))
			}
		}
		outcome, err = h.fail(ctx, attempt, target, reason)
	}
	if err != nil {
		run.Fail("SETTLEMENT_FAILED")
		return nil, err
	}
	res.Outcome = outcome

	switch outcome {
	case OutcomeFlagged:
		run.Status("PAYMENT_FLAGGED")
	case OutcomeDuplicate:
		run.Status("DUPLICATE_EVENT")
	case OutcomeOrderMissing:
		run.Status("ORDER_MISSING")
	}
	span.SetAttributes(attribute.String("payment.outcome", string(outcome)))
	return res, nil
}

// flagLateCapture reports money captured for an attempt this service already settled as failed or canceled.
// The attempt and order stay as they are; the capture needs a refund or manual review.
func (h *Handler) flagLateCapture(ctx context.Context, a *payment.Attempt, evt *payment.Event) Outcome {
	logctx.FromOr(ctx, h.in.Logger()).Error("payment_captured_after_failure",
		observability.F("order_id", a.OrderID),
		observability.F("transaction_id", a.TransactionID),
		observability.F("attempt_status", string(a.Status)),
		observability.F("captured_amount", evt.Amount),
	)
	_ = h.in.Publish(ctx, h.deps.Publisher, payment.NewFlaggedEvent(a, a.Amount, evt.Amount, ReasonCapturedAfterFailure))
	return OutcomeFlagged
}

func (h *Handler) count(kind, outcome string) {
	h.events.Add(1,
		observability.L("kind", kind),
		observability.L("outcome", outcome),
	)
}
