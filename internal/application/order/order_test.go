package order

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paysim"
	"github.com/stretchr/testify/suite"
)

type OrderSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	sim      *paysim.Simulator
	checkout *checkout.UseCase
	get      *GetUseCase
	cancel   *CancelUseCase
	shipping *ShippingUseCase
}

func TestOrderSuite(t *testing.T) {
	suite.Run(t, new(OrderSuite))
}

func (s *OrderSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.sim = paysim.New("whsec_test", 1)

	p, err := catalog.NewProduct("P", "Mug", 1250, 5)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Catalog().Upsert(s.ctx, p))

	s.checkout = checkout.New(checkout.Deps{
		Catalog:    s.store.Catalog(),
		Carts:      s.store.Carts(),
		Orders:     s.store.Orders(),
		Payments:   s.store.Payments(),
		Processor:  s.sim,
		UoW:        s.store.UnitOfWork(),
		IDs:        id.NewUUIDGenerator(),
		PaymentTTL: time.Hour,
	})
	deps := Deps{
		Catalog:   s.store.Catalog(),
		Orders:    s.store.Orders(),
		Payments:  s.store.Payments(),
		Processor: s.sim,
		UoW:       s.store.UnitOfWork(),
	}
	s.get = NewGetUseCase(deps)
	s.cancel = NewCancelUseCase(deps)
	s.shipping = NewShippingUseCase(deps)
}

func (s *OrderSuite) place() *checkout.Result {
	res, err := s.checkout.Execute(s.ctx, checkout.Command{
		UserID: "u1",
		Items:  []checkout.Item{{ProductID: "P", Quantity: 2}},
	})
	s.Require().NoError(err)
	return res
}

func (s *OrderSuite) stock() int {
	p, err := s.store.Catalog().Get(s.ctx, "P")
	s.Require().NoError(err)
	return p.Stock
}

func (s *OrderSuite) markPaid(orderID string) {
	ok, err := s.store.Orders().ApplyStatus(s.ctx, orderID, domain.MarkPaid())
	s.Require().NoError(err)
	s.Require().True(ok)
}

func (s *OrderSuite) TestGetReturnsOrderWithAttempts() {
	res := s.place()

	got, err := s.get.Execute(s.ctx, GetCommand{UserID: "u1", OrderID: res.OrderID})
	s.Require().NoError(err)
	s.Equal(int64(2500), got.Order.Total)
	s.Require().Len(got.Attempts, 1)
	s.Equal(res.PaymentIntentID, got.Attempts[0].TransactionID)
}

func (s *OrderSuite) TestGetHidesOtherUsersOrders() {
	res := s.place()

	_, err := s.get.Execute(s.ctx, GetCommand{UserID: "u2", OrderID: res.OrderID})
	s.ErrorIs(err, apperr.ErrNotFound)

	_, err = s.get.Execute(s.ctx, GetCommand{UserID: "u1", OrderID: "missing"})
	s.ErrorIs(err, apperr.ErrNotFound)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *OrderSuite) TestCancelPendingOrder() {
	res := s.place()
	s.Equal(3, s.stock())

	out, err := s.cancel.Execute(s.ctx, CancelCommand{UserID: "u1", OrderID: res.OrderID})
	s.Require().NoError(err)
	s.Equal(domain.PaymentCanceled, out.PaymentStatus)
	s.Equal(domain.ShippingCancelled, out.ShippingStatus)
	s.Equal(5, s.stock())

	a, err := s.store.Payments().FindByTransactionID(s.ctx, res.PaymentIntentID)
	s.Require().NoError(err)
	s.Equal(payment.StatusCanceled, a.Status)
	intent, err := s.sim.RetrieveIntent(s.ctx, res.PaymentIntentID)
	s.Require().NoError(err)
	s.Equal(payment.IntentCanceled, intent.Status)

	_, err = s.cancel.Execute(s.ctx, CancelCommand{UserID: "u1", OrderID: res.OrderID})
	s.ErrorIs(err, apperr.ErrConflict)
	s.Equal(5, s.stock(), "a second cancel must not release again")
}

func (s *OrderSuite) TestCancelPaidOrderConflicts() {
	res := s.place()
	s.markPaid(res.OrderID)

	_, err := s.cancel.Execute(s.ctx, CancelCommand{UserID: "u1", OrderID: res.OrderID})
	s.ErrorIs(err, apperr.ErrConflict)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(3, s.stock())
}

func (s *OrderSuite) TestCancelKeepsOrderWhenProcessorRefuses() {
	res := s.place()
	s.Require().NoError(s.sim.SetStatus(res.PaymentIntentID, payment.IntentSucceeded))

	_, err := s.cancel.Execute(s.ctx, CancelCommand{UserID: "u1", OrderID: res.OrderID})
	s.ErrorIs(err, apperr.ErrExternal)

	o, err := s.store.Orders().Get(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentPending, o.PaymentStatus)
	s.Equal(3, s.stock())
}

func (s *OrderSuite) TestCancelOrderWithoutAttempt() {
	s.sim.FailCreate(true)
	_, err := s.checkout.Execute(s.ctx, checkout.Command{
		UserID:         "u1",
		IdempotencyKey: "k1",
		Items:          []checkout.Item{{ProductID: "P", Quantity: 1}},
	})
	s.Require().ErrorIs(err, apperr.ErrExternal)
	o, err := s.store.Orders().FindByIdempotencyKey(s.ctx, "u1", "k1")
	s.Require().NoError(err)

	_, err = s.cancel.Execute(s.ctx, CancelCommand{UserID: "u1", OrderID: o.ID})
	s.Require().NoError(err)
	s.Equal(5, s.stock())
}

func (s *OrderSuite) TestCancelOtherUsersOrder() {
	res := s.place()

	_, err := s.cancel.Execute(s.ctx, CancelCommand{UserID: "u2", OrderID: res.OrderID})
	s.ErrorIs(err, apperr.ErrNotFound)
	s.Equal(3, s.stock())
}

func (s *OrderSuite) TestShippingMovesForwardOnly() {
	res := s.place()
	s.markPaid(res.OrderID)

	out, err := s.shipping.Execute(s.ctx, ShippingCommand{OrderID: res.OrderID, Status: domain.ShippingShipped, Staff: true})
	s.Require().NoError(err)
	s.Equal(domain.ShippingShipped, out.ShippingStatus)

	_, err = s.shipping.Execute(s.ctx, ShippingCommand{OrderID: res.OrderID, Status: domain.ShippingDelivered, Staff: true})
	s.Require().NoError(err)

	_, err = s.shipping.Execute(s.ctx, ShippingCommand{OrderID: res.OrderID, Status: domain.ShippingShipped, Staff: true})
	s.ErrorIs(err, apperr.ErrConflict)

	o, err := s.store.Orders().Get(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.ShippingDelivered, o.ShippingStatus)
	s.Equal(domain.PaymentPaid, o.PaymentStatus)
}

func (s *OrderSuite) TestShippingRejections() {
	res := s.place()

	_, err := s.shipping.Execute(s.ctx, ShippingCommand{OrderID: res.OrderID, Status: domain.ShippingShipped})
	s.ErrorIs(err, apperr.ErrForbidden)

	_, err = s.shipping.Execute(s.ctx, ShippingCommand{OrderID: res.OrderID, Status: domain.ShippingShipped, Staff: true})
	s.ErrorIs(err, apperr.ErrConflict, "unpaid orders do not ship")

	_, err = s.shipping.Execute(s.ctx, ShippingCommand{OrderID: res.OrderID, Status: domain.ShippingCancelled, Staff: true})
	s.ErrorIs(err, apperr.ErrValidation)
}
