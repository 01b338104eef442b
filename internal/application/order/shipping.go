package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseShipping = "order.update_shipping"

// ShippingCommand is the only order mutation open to staff; it cannot touch payment fields.
type ShippingCommand struct {
	OrderID string
	Status  domain.ShippingStatus
	Staff   bool
}

type ShippingResult struct {
	OrderID        string
	ShippingStatus domain.ShippingStatus
}

type ShippingUseCase struct {
	deps Deps
	in   application.Instrumentation
}

var _ application.UseCase[ShippingCommand, *ShippingResult] = (*ShippingUseCase)(nil)

func NewShippingUseCase(deps Deps) *ShippingUseCase {
	return &ShippingUseCase{deps: deps, in: application.NewInstrumentation(deps.Tel, orderService)}
}

func (uc *ShippingUseCase) Execute(ctx context.Context, cmd ShippingCommand) (_ *ShippingResult, err error) {
	ctx, run := uc.in.Start(ctx, useCaseShipping, "UpdateShipping",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.shipping_status", string(cmd.Status)),
	)
	defer func() { run.End(err) }()

	if !cmd.Staff {
		run.Fail("FORBIDDEN")
		return nil, apperr.Wrap(apperr.ErrForbidden, fmt.Errorf("order: shipping updates need a staff caller"))
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, apperr.Validation("order id is required")
	}
	switch cmd.Status {
	case domain.ShippingShipped, domain.ShippingDelivered:
	default:
		run.Fail("SHIPPING_STATUS_INVALID")
		return nil, apperr.Validation("shipping status must be shipped or delivered")
	}

	o, err := loadOwned(ctx, uc.deps.Orders, "", cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, err
	}
	if o.PaymentStatus != domain.PaymentPaid {
		run.Fail("ORDER_NOT_PAID")
		return nil, apperr.Wrap(apperr.ErrConflict, fmt.Errorf("order %s is %s: %w", o.ID, o.PaymentStatus, domain.ErrInvalidTransition))
	}
	from := o.ShippingStatus
	change := domain.AdvanceShipping(from, cmd.Status)
	if err := change.Validate(); err != nil {
		run.Fail("INVALID_TRANSITION")
		return nil, apperr.Wrap(apperr.ErrConflict, fmt.Errorf("shipping %s -> %s: %w", from, cmd.Status, err))
	}

	ok, err := uc.deps.Orders.ApplyStatus(ctx, o.ID, change)
	if err != nil {
		run.Fail("ORDER_UPDATE_FAILED")
		return nil, fmt.Errorf("order: update shipping: %w", err)
	}
	if !ok {
		run.Fail("CONCURRENT_UPDATE")
		return nil, apperr.Wrap(apperr.ErrConflict, domain.ErrConflict)
	}
	run.With(
		observability.F("order_id", o.ID),
		observability.F("shipping_from", string(from)),
		observability.F("shipping_to", string(cmd.Status)),
	)
	_ = uc.in.Publish(ctx, uc.deps.Publisher, domain.NewShippingUpdatedEvent(o.ID, from, cmd.Status))

	return &ShippingResult{OrderID: o.ID, ShippingStatus: cmd.Status}, nil
}
