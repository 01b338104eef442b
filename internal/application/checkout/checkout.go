package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService      = "checkout-service"
	useCaseCheckout      = "checkout.initiate"
	processorPeer        = "payment_processor"
	defaultPaymentTTL    = 30 * time.Minute
	defaultCurrency      = "usd"
	defaultPaymentMethod = "card"
)

type Deps struct {
	Catalog   catalog.Repository
	Carts     cart.Repository
	Orders    order.Repository
	Payments  payment.Repository
	Processor payment.Processor
	UoW       application.UnitOfWork
	IDs       application.IDGenerator
	Publisher domoutbox.Publisher
	Tel       observability.Observability

	Currency   string
	PaymentTTL time.Duration
}

// UseCase turns a cart or an explicit item list into a pending order with an open payment attempt.
type UseCase struct {
	deps Deps
	in   application.Instrumentation

	reservations observability.Counter // stock_reservations_total{outcome}
}

var _ application.UseCase[Command, *Result] = (*UseCase)(nil)

func New(deps Deps) *UseCase {
	if deps.Currency == "" {
		deps.Currency = defaultCurrency
	}
	if deps.PaymentTTL <= 0 {
		deps.PaymentTTL = defaultPaymentTTL
	}
	in := application.NewInstrumentation(deps.Tel, checkoutService)
	metrics := observability.NopMetrics()
	if deps.Tel != nil {
		metrics = deps.Tel.Metrics()
	}
	return &UseCase{
		deps:         deps,
		in:           in,
		reservations: metrics.Counter(observability.MStockReservations),
	}
}

type Item struct {
	ProductID string
	Quantity  int
}

type Command struct {
	UserID         string
	IdempotencyKey string
	// Items, when set, replaces the user's cart as the source of line items.
	Items          []Item
	PaymentMethod  string
	ShippingMethod string
	Contact        order.Contact
}

type Result struct {
	OrderID             string
	PaymentIntentID     string
	ClientPaymentHandle string
	Amount              int64
	Currency            string
	PaymentStatus       order.PaymentStatus
	Replayed            bool
}

func (uc *UseCase) Execute(ctx context.Context, cmd Command) (_ *Result, err error) {
	ctx, run := uc.in.Start(ctx, useCaseCheckout, "InitiateCheckout",
		attribute.String("checkout.user_id", cmd.UserID),
		attribute.Int("checkout.explicit_items", len(cmd.Items)),
	)
	defer func() { run.End(err) }()
	span := run.Span()
	logger := run.Logger()

	if strings.TrimSpace(cmd.UserID) == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, apperr.Validation("user id is required")
	}
	for _, it := range cmd.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 {
			run.Fail("ITEM_INVALID")
			return nil, apperr.Validation("every item needs a product id and a quantity of at least 1")
		}
	}
	if cmd.PaymentMethod == "" {
		cmd.PaymentMethod = defaultPaymentMethod
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	if cmd.IdempotencyKey != "" {
		existing, lookupErr := uc.deps.Orders.FindByIdempotencyKey(ctx, cmd.UserID, cmd.IdempotencyKey)
		switch {
		case lookupErr == nil:
			run.Status("IDEMPOTENT_REPLAY")
			run.With(observability.F("order_id", existing.ID))
			span.AddEvent("checkout.idempotent_replay", trace.WithAttributes(attribute.String("order.id", existing.ID)))
			return uc.replay(ctx, run, existing, cmd)
		case errors.Is(lookupErr, order.ErrNotFound):
		default:
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, fmt.Errorf("checkout: idempotency lookup: %w", lookupErr)
		}
	}

	requested, fromCart, err := uc.loadItems(ctx, cmd)
	if err != nil {
		if errors.Is(err, cart.ErrEmpty) {
			run.Fail("CART_EMPTY")
		} else {
			run.Fail("CART_LOAD_FAILED")
		}
		return nil, err
	}

	lines, err := uc.snapshot(ctx, requested)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInsufficientStock):
			run.Fail("INSUFFICIENT_STOCK")
		case errors.Is(err, catalog.ErrNotFound):
			run.Fail("PRODUCT_NOT_FOUND")
		default:
			run.Fail("CATALOG_READ_FAILED")
		}
		return nil, err
	}

	entity, err := order.New(order.Draft{
		ID:             uc.deps.IDs.NewID(),
		UserID:         cmd.UserID,
		IdempotencyKey: cmd.IdempotencyKey,
		Currency:       uc.deps.Currency,
		PaymentMethod:  cmd.PaymentMethod,
		ShippingMethod: cmd.ShippingMethod,
		Contact:        cmd.Contact,
		Lines:          lines,
	})
	if err != nil {
		run.Fail("ORDER_INVALID")
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	run.With(observability.F("order_id", entity.ID), observability.F("amount", entity.Total))
	span.SetAttributes(attribute.String("order.id", entity.ID), attribute.Int64("order.total", entity.Total))

	if err := uc.placeOrder(ctx, entity); err != nil {
		if errors.Is(err, order.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.deps.Orders.FindByIdempotencyKey(ctx, cmd.UserID, cmd.IdempotencyKey); lookupErr == nil {
				run.Status("IDEMPOTENT_REPLAY")
				return uc.replay(ctx, run, existing, cmd)
			}
		}
		if errors.Is(err, catalog.ErrInsufficientStock) {
			run.Fail("INSUFFICIENT_STOCK")
		} else {
			run.Fail("RESERVATION_FAILED")
		}
		return nil, err
	}
	span.AddEvent("order.placed", trace.WithAttributes(attribute.String("order.id", entity.ID)))

	res, err := uc.openPayment(ctx, run, entity, cmd.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	if fromCart {
		if clearErr := uc.deps.Carts.Clear(ctx, cmd.UserID); clearErr != nil {
			run.Status("CART_CLEAR_FAILED")
			logger.Warn("cart_clear_failed",
				observability.F("user_id", cmd.UserID),
				observability.F("error", clearErr.Error()),
			)
		}
	}

	if pubErr := uc.in.Publish(ctx, uc.deps.Publisher, order.NewPlacedEvent(entity)); pubErr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
	}
	return res, nil
}

// loadItems returns the explicit items merged by product, or the user's cart.
func (uc *UseCase) loadItems(ctx context.Context, cmd Command) ([]Item, bool, error) {
	if len(cmd.Items) > 0 {
		return mergeItems(cmd.Items), false, nil
	}
	c, err := uc.deps.Carts.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, true, fmt.Errorf("checkout: load cart: %w", err)
	}
	if c.IsEmpty() {
		return nil, true, apperr.Wrap(apperr.ErrConflict, cart.ErrEmpty)
	}
	items := make([]Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return mergeItems(items), true, nil
}

func mergeItems(items []Item) []Item {
	idx := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// snapshot checks stock and freezes name and price for every line.
func (uc *UseCase) snapshot(ctx context.Context, items []Item) ([]order.Line, error) {
	lines := make([]order.Line, 0, len(items))
	for _, it := range items {
		p, err := uc.deps.Catalog.Get(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, apperr.Wrap(apperr.ErrNotFound, fmt.Errorf("product %s: %w", it.ProductID, err))
			}
			return nil, fmt.Errorf("checkout: load product %s: %w", it.ProductID, err)
		}
		if err := p.CheckAvailable(it.Quantity); err != nil {
			return nil, apperr.Wrap(apperr.ErrConflict, err)
		}
		lines = append(lines, order.Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
	}
	return lines, nil
}

// placeOrder reserves every line and inserts the order as one unit; any failure leaves no writes behind.
func (uc *UseCase) placeOrder(ctx context.Context, o *order.Order) error {
	return uc.deps.UoW.Do(ctx, func(ctx context.Context) error {
		for _, l := range o.Lines {
			if err := uc.deps.Catalog.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
				if errors.Is(err, catalog.ErrInsufficientStock) {
					uc.reservations.Add(1, observability.L("outcome", "insufficient"))
					return apperr.Wrap(apperr.ErrConflict, err)
				}
				uc.reservations.Add(1, observability.L("outcome", "error"))
				if errors.Is(err, catalog.ErrNotFound) {
					return apperr.Wrap(apperr.ErrNotFound, err)
				}
				return fmt.Errorf("checkout: reserve %s: %w", l.ProductID, err)
			}
			uc.reservations.Add(1, observability.L("outcome", "reserved"))
		}
		if err := uc.deps.Orders.Insert(ctx, o); err != nil {
			return fmt.Errorf("checkout: insert order: %w", err)
		}
		return nil
	})
}

// openPayment creates the processor intent and records the pending attempt.
// A processor failure leaves the order pending with its stock reserved; the sweep settles it.
func (uc *UseCase) openPayment(ctx context.Context, run *application.Run, o *order.Order, key string) (*Result, error) {
	logger := run.Logger()
	req := payment.IntentRequest{
		Amount:        o.Total,
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
		Description:   "order " + o.ID,
		Metadata: map[string]string{
			payment.MetadataOrderID: o.ID,
			payment.MetadataUserID:  o.UserID,
		},
		IdempotencyKey: processorKey(o, key),
	}

	var intent *payment.Intent
	err := uc.in.External(ctx, processorPeer, "create_intent", func(ctx context.Context) error {
		var callErr error
		intent, callErr = uc.deps.Processor.CreateIntent(ctx, req)
		return callErr
	})
	if err != nil {
		run.Fail("PROCESSOR_UNAVAILABLE")
		logger.Warn("payment_intent_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
		return nil, apperr.Wrap(apperr.ErrExternal, fmt.Errorf("checkout: create payment intent: %w", err))
	}

	attempt, err := payment.NewAttempt(uc.deps.IDs.NewID(), o.ID, o.UserID, intent.ID, o.Total, o.Currency, uc.deps.PaymentTTL)
	if err != nil {
		run.Fail("ATTEMPT_INVALID")
		return nil, fmt.Errorf("checkout: build attempt: %w", err)
	}
	if err := uc.deps.Payments.Insert(ctx, attempt); err != nil && !errors.Is(err, payment.ErrDuplicateTransaction) {
		run.Fail("ATTEMPT_PERSIST_FAILED")
		logger.Error("payment_attempt_persist_failed",
			observability.F("order_id", o.ID),
			observability.F("transaction_id", intent.ID),
			observability.F("error", err.Error()),
		)
		if cancelErr := uc.deps.Processor.CancelIntent(ctx, intent.ID); cancelErr != nil {
			logger.Error("payment_intent_cancel_failed",
				observability.F("transaction_id", intent.ID),
				observability.F("error", cancelErr.Error()),
			)
		}
		return nil, fmt.Errorf("checkout: record payment attempt: %w", err)
	}
	run.With(observability.F("transaction_id", intent.ID))

	return &Result{
		OrderID:             o.ID,
		PaymentIntentID:     intent.ID,
		ClientPaymentHandle: intent.ClientSecret,
		Amount:              o.Total,
		Currency:            o.Currency,
		PaymentStatus:       o.PaymentStatus,
	}, nil
}

// replay answers a repeated checkout with the order the key already produced.
func (uc *UseCase) replay(ctx context.Context, run *application.Run, o *order.Order, cmd Command) (*Result, error) {
	res := &Result{
		OrderID:       o.ID,
		Amount:        o.Total,
		Currency:      o.Currency,
		PaymentStatus: o.PaymentStatus,
		Replayed:      true,
	}
	if o.PaymentStatus != order.PaymentPending {
		return res, nil
	}

	pending, err := uc.deps.Payments.FindPendingByOrder(ctx, o.ID)
	switch {
	case err == nil:
		var intent *payment.Intent
		callErr := uc.in.External(ctx, processorPeer, "retrieve_intent", func(ctx context.Context) error {
			var e error
			intent, e = uc.deps.Processor.RetrieveIntent(ctx, pending.TransactionID)
			return e
		})
		if callErr != nil {
			run.Fail("PROCESSOR_UNAVAILABLE")
			return nil, apperr.Wrap(apperr.ErrExternal, fmt.Errorf("checkout: retrieve payment intent: %w", callErr))
		}
		res.PaymentIntentID = intent.ID
		res.ClientPaymentHandle = intent.ClientSecret
		return res, nil
	case errors.Is(err, payment.ErrNotFound):
	default:
		run.Fail("ATTEMPT_LOOKUP_FAILED")
		return nil, fmt.Errorf("checkout: find pending attempt: %w", err)
	}

	attempts, err := uc.deps.Payments.ListByOrder(ctx, o.ID)
	if err != nil {
		run.Fail("ATTEMPT_LOOKUP_FAILED")
		return nil, fmt.Errorf("checkout: list attempts: %w", err)
	}
	if len(attempts) > 0 {
		// Settled attempts with a still pending order await manual review.
		return res, nil
	}

	// The processor call failed on the first try; resume from opening the payment.
	run.Status("PAYMENT_RESUMED")
	resumed, err := uc.openPayment(ctx, run, o, cmd.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	resumed.Replayed = true
	return resumed, nil
}

func processorKey(o *order.Order, key string) string {
	if key != "" {
		return "checkout:" + o.UserID + ":" + key
	}
	return "order:" + o.ID
}
