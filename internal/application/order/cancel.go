package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseCancel        = "order.cancel"
	ReasonCanceledByUser = "canceled_by_user"
)

type CancelCommand struct {
	UserID  string
	OrderID string
}

type CancelResult struct {
	OrderID        string
	PaymentStatus  domain.PaymentStatus
	ShippingStatus domain.ShippingStatus
}

// CancelUseCase cancels an order that is still awaiting payment.
// The processor intent is canceled first; if the processor refuses, nothing changes locally.
type CancelUseCase struct {
	deps Deps
	in   application.Instrumentation
}

var _ application.UseCase[CancelCommand, *CancelResult] = (*CancelUseCase)(nil)

func NewCancelUseCase(deps Deps) *CancelUseCase {
	return &CancelUseCase{deps: deps, in: application.NewInstrumentation(deps.Tel, orderService)}
}

func (uc *CancelUseCase) Execute(ctx context.Context, cmd CancelCommand) (_ *CancelResult, err error) {
	ctx, run := uc.in.Start(ctx, useCaseCancel, "CancelOrder", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	if strings.TrimSpace(cmd.UserID) == "" || strings.TrimSpace(cmd.OrderID) == "" {
		run.Fail("ARGUMENTS_REQUIRED")
		return nil, apperr.Validation("user id and order id are required")
	}
	o, err := loadOwned(ctx, uc.deps.Orders, cmd.UserID, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, err
	}
	if o.PaymentStatus != domain.PaymentPending {
		run.Fail("ORDER_NOT_PENDING")
		return nil, apperr.Wrap(apperr.ErrConflict, fmt.Errorf("order %s is %s: %w", o.ID, o.PaymentStatus, domain.ErrInvalidTransition))
	}

	pending, err := uc.deps.Payments.FindPendingByOrder(ctx, o.ID)
	switch {
	case errors.Is(err, payment.ErrNotFound):
		pending = nil
	case err != nil:
		run.Fail("ATTEMPT_LOOKUP_FAILED")
		return nil, fmt.Errorf("order: find pending attempt: %w", err)
	}

	if pending != nil {
		run.With(observability.F("transaction_id", pending.TransactionID))
		cancelErr := uc.in.External(ctx, processorPeer, "cancel_intent", func(ctx context.Context) error {
			return uc.deps.Processor.CancelIntent(ctx, pending.TransactionID)
		})
		if cancelErr != nil {
			run.Fail("PROCESSOR_CANCEL_FAILED")
			return nil, apperr.Wrap(apperr.ErrExternal, fmt.Errorf("order: cancel payment intent: %w", cancelErr))
		}
	}

	var attemptCanceled bool
	err = uc.deps.UoW.Do(ctx, func(ctx context.Context) error {
		ok, err := uc.deps.Orders.ApplyStatus(ctx, o.ID, domain.MarkCanceled())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Wrap(apperr.ErrConflict, domain.ErrConflict)
		}
		if pending != nil {
			attemptCanceled, err = uc.deps.Payments.Transition(ctx, pending.ID, payment.StatusCanceled, false, ReasonCanceledByUser)
			if err != nil {
				return err
			}
		}
		return releaseLines(ctx, uc.deps.Catalog, o)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			run.Fail("ORDER_NOT_PENDING")
			return nil, err
		}
		run.Fail("CANCEL_FAILED")
		return nil, fmt.Errorf("order: cancel %s: %w", o.ID, err)
	}

	o.PaymentStatus, o.ShippingStatus = domain.PaymentCanceled, domain.ShippingCancelled
	events := []domoutbox.Event{domain.NewPaymentFailedEvent(o, domain.PaymentCanceled, ReasonCanceledByUser)}
	if attemptCanceled {
		events = append(events, payment.NewFailedEvent(pending, payment.StatusCanceled, ReasonCanceledByUser))
	}
	for _, l := range o.Lines {
		events = append(events, catalog.NewStockReleasedEvent(o.ID, l.ProductID, l.Quantity, ReasonCanceledByUser))
	}
	_ = uc.in.Publish(ctx, uc.deps.Publisher, events...)

	return &CancelResult{OrderID: o.ID, PaymentStatus: o.PaymentStatus, ShippingStatus: o.ShippingStatus}, nil
}
