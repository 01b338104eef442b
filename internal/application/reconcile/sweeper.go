package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	useCaseSweep  = "payment.sweep"
	defaultBatch  = 100
	processorPeer = "payment_processor"
)

type SweepConfig struct {
	// Batch caps how many attempts and orders one pass looks at.
	Batch int
	// OrphanAfter is how long an order may stay pending without any payment attempt.
	OrphanAfter time.Duration
	Now         func() time.Time
}

type SweepReport struct {
	Expired int
	Paid    int
	Skipped int
	Orphans int
	Errors  int
}

// Sweeper settles attempts left pending past their expiry and orders whose payment was never opened.
type Sweeper struct {
	settler
	cfg SweepConfig
}

func NewSweeper(deps Deps, cfg SweepConfig) *Sweeper {
	if cfg.Batch <= 0 {
		cfg.Batch = defaultBatch
	}
	if cfg.OrphanAfter <= 0 {
		cfg.OrphanAfter = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Sweeper{
		settler: settler{deps: deps, in: application.NewInstrumentation(deps.Tel, reconcileService)},
		cfg:     cfg,
	}
}

// Sweep runs one pass. Individual failures are logged and counted; the pass carries on.
func (s *Sweeper) Sweep(ctx context.Context) (_ SweepReport, err error) {
	ctx, run := s.in.Start(ctx, useCaseSweep, "Sweep")
	defer func() { run.End(err) }()
	logger := run.Logger()
	now := s.cfg.Now()

	var rep SweepReport
	defer func() {
		run.With(
			observability.F("expired", rep.Expired),
			observability.F("paid", rep.Paid),
			observability.F("skipped", rep.Skipped),
			observability.F("orphans", rep.Orphans),
			observability.F("errors", rep.Errors),
		)
	}()

	expired, err := s.deps.Payments.ListExpired(ctx, now, s.cfg.Batch)
	if err != nil {
		run.Fail("LIST_EXPIRED_FAILED")
		return rep, fmt.Errorf("reconcile: list expired attempts: %w", err)
	}
	for _, a := range expired {
		if ctx.Err() != nil {
			run.Fail("CONTEXT_CANCELED")
			return rep, ctx.Err()
		}
		outcome, err := s.expire(ctx, a)
		if err != nil {
			rep.Errors++
			logger.Warn("sweep_attempt_failed",
				observability.F("transaction_id", a.TransactionID),
				observability.F("order_id", a.OrderID),
				observability.F("error", err.Error()),
			)
			continue
		}
		switch outcome {
		case OutcomePaid, OutcomeFlagged:
			rep.Paid++
		case OutcomeSkipped, OutcomeDuplicate:
			rep.Skipped++
		default:
			rep.Expired++
		}
	}

	orphans, err := s.deps.Orders.ListPendingBefore(ctx, now.Add(-s.cfg.OrphanAfter), s.cfg.Batch)
	if err != nil {
		run.Fail("LIST_ORPHANS_FAILED")
		return rep, fmt.Errorf("reconcile: list pending orders: %w", err)
	}
	for _, o := range orphans {
		if ctx.Err() != nil {
			run.Fail("CONTEXT_CANCELED")
			return rep, ctx.Err()
		}
		failed, err := s.failOrphan(ctx, o)
		if err != nil {
			rep.Errors++
			logger.Warn("sweep_order_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err.Error()),
			)
			continue
		}
		if failed {
			rep.Orphans++
		}
	}
	if rep.Errors > 0 {
		run.Status("PARTIAL")
	}
	return rep, nil
}

// expire asks the processor where an overdue attempt stands before giving up on it.
func (s *Sweeper) expire(ctx context.Context, a *payment.Attempt) (Outcome, error) {
	var intent *payment.Intent
	err := s.in.External(ctx, processorPeer, "retrieve_intent", func(ctx context.Context) error {
		var e error
		intent, e = s.deps.Processor.RetrieveIntent(ctx, a.TransactionID)
		return e
	})
	if err != nil {
		return "", fmt.Errorf("retrieve intent: %w", err)
	}

	switch intent.Status {
	case payment.IntentSucceeded:
		return s.succeed(ctx, a, Report{
			TransactionID: intent.ID,
			Amount:        intent.AmountReceived,
			Currency:      intent.Currency,
			Metadata:      intent.Metadata,
		})
	case payment.IntentProcessing:
		return OutcomeSkipped, nil
	case payment.IntentCanceled:
		return s.fail(ctx, a, payment.StatusCanceled, ReasonExpired)
	}

	cancelErr := s.in.External(ctx, processorPeer, "cancel_intent", func(ctx context.Context) error {
		return s.deps.Processor.CancelIntent(ctx, a.TransactionID)
	})
	if cancelErr != nil {
		logctx.FromOr(ctx, s.in.Logger()).Warn("payment_intent_cancel_failed",
			observability.F("transaction_id", a.TransactionID),
			observability.F("error", cancelErr.Error()),
		)
	}
	return s.fail(ctx, a, payment.StatusFailed, ReasonExpired)
}

// failOrphan fails a pending order that never got a payment attempt and releases its stock.
func (s *Sweeper) failOrphan(ctx context.Context, o *order.Order) (bool, error) {
	attempts, err := s.deps.Payments.ListByOrder(ctx, o.ID)
	if err != nil {
		return false, fmt.Errorf("list attempts: %w", err)
	}
	if len(attempts) > 0 {
		return false, nil
	}

	var applied bool
	err = s.deps.UoW.Do(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.deps.Orders.ApplyStatus(ctx, o.ID, order.MarkFailed(order.PaymentFailed))
		if err != nil || !applied {
			return err
		}
		return releaseLines(ctx, s.deps.Catalog, o)
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if applied {
		events := append(releasedEvents(o, ReasonExpired), order.NewPaymentFailedEvent(o, order.PaymentFailed, ReasonExpired))
		_ = s.in.Publish(ctx, s.deps.Publisher, events...)
	}
	return applied, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := logctx.FromOr(ctx, s.in.Logger())
	logger.Info("sweeper_started", observability.F("interval", interval.String()))
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.Error("sweep_failed", observability.F("error", err.Error()))
			}
		}
	}
}
