package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	ReasonAmountMismatch  = "amount_mismatch"
	ReasonOrderNotPending = "order_not_pending"
	ReasonExpired         = "expired"

	ReasonCapturedAfterFailure = "captured_after_failure"
)

// errSettled aborts a unit of work whose attempt was settled concurrently.
var errSettled = errors.New("reconcile: attempt already settled")

type Deps struct {
	Catalog   catalog.Repository
	Orders    order.Repository
	Payments  payment.Repository
	Processor payment.Processor
	UoW       application.UnitOfWork
	Publisher domoutbox.Publisher
	Tel       observability.Observability
}

// Outcome describes what applying a processor outcome did.
type Outcome string

const (
	OutcomePaid         Outcome = "paid"
	OutcomeFailed       Outcome = "failed"
	OutcomeCanceled     Outcome = "canceled"
	OutcomeFlagged      Outcome = "flagged"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUntracked    Outcome = "untracked"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeOrderMissing Outcome = "order_missing"
	OutcomeMalformed    Outcome = "malformed"
)

// Report is what the processor says about an attempt.
type Report struct {
	TransactionID string
	Amount        int64
	Currency      string
	Metadata      map[string]string
	Reason        string
}

// settler applies terminal outcomes to an attempt and its order as one unit of work.
type settler struct {
	deps Deps
	in   application.Instrumentation
}

func (s *settler) succeed(ctx context.Context, a *payment.Attempt, r Report) (Outcome, error) {
	o, err := s.deps.Orders.Get(ctx, a.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return OutcomeOrderMissing, nil
		}
		return "", fmt.Errorf("reconcile: load order %s: %w", a.OrderID, err)
	}

	expected := o.ExpectedTotal()
	if reason := mismatch(o, a, r, expected); reason != "" {
		err := s.deps.UoW.Do(ctx, func(ctx context.Context) error {
			ok, err := s.deps.Payments.Transition(ctx, a.ID, payment.StatusFailed, true, ReasonAmountMismatch)
			if err != nil {
				return err
			}
			if !ok {
				return errSettled
			}
			return nil
		})
		if errors.Is(err, errSettled) {
			return OutcomeDuplicate, nil
		}
		if err != nil {
			return "", fmt.Errorf("reconcile: flag attempt %s: %w", a.ID, err)
		}
		logctx.FromOr(ctx, s.in.Logger()).Error("payment_amount_mismatch",
			observability.F("order_id", o.ID),
			observability.F("transaction_id", a.TransactionID),
			observability.F("expected_amount", expected),
			observability.F("reported_amount", r.Amount),
			observability.F("reason", reason),
		)
		_ = s.in.Publish(ctx, s.deps.Publisher, payment.NewFlaggedEvent(a, expected, r.Amount, reason))
		return OutcomeFlagged, nil
	}

	var orderPaid bool
	err = s.deps.UoW.Do(ctx, func(ctx context.Context) error {
		var err error
		orderPaid, err = s.deps.Orders.ApplyStatus(ctx, o.ID, order.MarkPaid())
		if err != nil {
			return err
		}
		reason := ""
		if !orderPaid {
			reason = ReasonOrderNotPending
		}
		ok, err := s.deps.Payments.Transition(ctx, a.ID, payment.StatusPaid, !orderPaid, reason)
		if err != nil {
			return err
		}
		if !ok {
			return errSettled
		}
		return nil
	})
	if errors.Is(err, errSettled) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("reconcile: settle attempt %s as paid: %w", a.ID, err)
	}

	if !orderPaid {
		logctx.FromOr(ctx, s.in.Logger()).Error("payment_captured_for_settled_order",
			observability.F("order_id", o.ID),
			observability.F("order_payment_status", string(o.PaymentStatus)),
			observability.F("transaction_id", a.TransactionID),
		)
		_ = s.in.Publish(ctx, s.deps.Publisher,
			payment.NewSucceededEvent(a, true),
			payment.NewFlaggedEvent(a, expected, r.Amount, ReasonOrderNotPending),
		)
		return OutcomeFlagged, nil
	}

	o.PaymentStatus = order.PaymentPaid
	_ = s.in.Publish(ctx, s.deps.Publisher,
		payment.NewSucceededEvent(a, false),
		order.NewPaidEvent(o, a.TransactionID),
	)
	return OutcomePaid, nil
}

// fail moves the attempt to to, and a still pending order along with it, releasing its stock.
func (s *settler) fail(ctx context.Context, a *payment.Attempt, to payment.Status, reason string) (Outcome, error) {
	o, err := s.deps.Orders.Get(ctx, a.OrderID)
	if err != nil && !errors.Is(err, order.ErrNotFound) {
		return "", fmt.Errorf("reconcile: load order %s: %w", a.OrderID, err)
	}
	orderTo := order.PaymentFailed
	if to == payment.StatusCanceled {
		orderTo = order.PaymentCanceled
	}

	var released bool
	// Order before attempt, the same lock order succeed and order cancel use.
	err = s.deps.UoW.Do(ctx, func(ctx context.Context) error {
		released = false
		if o != nil {
			var err error
			released, err = s.deps.Orders.ApplyStatus(ctx, o.ID, order.MarkFailed(orderTo))
			if err != nil {
				return err
			}
		}
		ok, err := s.deps.Payments.Transition(ctx, a.ID, to, false, reason)
		if err != nil {
			return err
		}
		if !ok {
			return errSettled
		}
		if !released {
			return nil
		}
		return releaseLines(ctx, s.deps.Catalog, o)
	})
	if errors.Is(err, errSettled) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("reconcile: settle attempt %s as %s: %w", a.ID, to, err)
	}

	events := []domoutbox.Event{payment.NewFailedEvent(a, to, reason)}
	if released {
		events = append(events, order.NewPaymentFailedEvent(o, orderTo, reason))
		events = append(events, releasedEvents(o, reason)...)
	}
	_ = s.in.Publish(ctx, s.deps.Publisher, events...)

	if o == nil {
		return OutcomeOrderMissing, nil
	}
	if to == payment.StatusCanceled {
		return OutcomeCanceled, nil
	}
	return OutcomeFailed, nil
}

// closeIntent cancels the processor intent so it can no longer be paid.
// An intent the processor already reports as canceled counts as closed.
func (s *settler) closeIntent(ctx context.Context, a *payment.Attempt) error {
	err := s.in.External(ctx, processorPeer, "cancel_intent", func(ctx context.Context) error {
		return s.deps.Processor.CancelIntent(ctx, a.TransactionID)
	})
	if err == nil {
		return nil
	}
	var intent *payment.Intent
	rerr := s.in.External(ctx, processorPeer, "retrieve_intent", func(ctx context.Context) error {
		var e error
		intent, e = s.deps.Processor.RetrieveIntent(ctx, a.TransactionID)
		return e
	})
	if rerr == nil && intent.Status == payment.IntentCanceled {
		return nil
	}
	return err
}

func mismatch(o *order.Order, a *payment.Attempt, r Report, expected int64) string {
	switch {
	case r.Amount != expected:
		return "captured amount differs from order total"
	case a.Amount != expected:
		return "attempt amount differs from order total"
	case r.Currency != "" && !strings.EqualFold(r.Currency, o.Currency):
		return "currency differs from order currency"
	case r.Metadata[payment.MetadataOrderID] != "" && r.Metadata[payment.MetadataOrderID] != o.ID:
		return "metadata order id differs from attempt order"
	}
	return ""
}

func releaseLines(ctx context.Context, repo catalog.Repository, o *order.Order) error {
	for _, l := range o.Lines {
		if err := repo.Release(ctx, l.ProductID, l.Quantity); err != nil {
			return fmt.Errorf("release %s: %w", l.ProductID, err)
		}
	}
	return nil
}

func releasedEvents(o *order.Order, reason string) []domoutbox.Event {
	out := make([]domoutbox.Event, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, catalog.NewStockReleasedEvent(o.ID, l.ProductID, l.Quantity, reason))
	}
	return out
}
