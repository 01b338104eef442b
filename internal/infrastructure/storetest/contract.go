// Package storetest holds the behaviour every store adapter must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stores is one adapter's set of repositories over a fresh, empty database.
type Stores struct {
	Catalog  catalog.Repository
	Carts    cart.Repository
	Orders   order.Repository
	Payments payment.Repository
	UoW      application.UnitOfWork
}

// Run exercises the repository contracts against stores returned by open.
func Run(t *testing.T, open func(t *testing.T) Stores) {
	t.Run("ReserveNeverOversells", func(t *testing.T) { reserveNeverOversells(t, open(t)) })
	t.Run("UnitOfWorkRollsBack", func(t *testing.T) { unitOfWorkRollsBack(t, open(t)) })
	t.Run("OrderConstraints", func(t *testing.T) { orderConstraints(t, open(t)) })
	t.Run("AttemptConstraints", func(t *testing.T) { attemptConstraints(t, open(t)) })
	t.Run("CartRoundTrip", func(t *testing.T) { cartRoundTrip(t, open(t)) })
	t.Run("OppositeOrderReservations", func(t *testing.T) { oppositeOrderReservations(t, open(t)) })
}

func product(t *testing.T, s Stores, stock int) string {
	t.Helper()
	id := "p-" + uuid.NewString()
	p, err := catalog.NewProduct(id, "Thing", 1000, stock)
	require.NoError(t, err)
	require.NoError(t, s.Catalog.Upsert(context.Background(), p))
	return id
}

func newOrder(t *testing.T, userID, key, productID string) *order.Order {
	t.Helper()
	o, err := order.New(order.Draft{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: key,
		Currency:       "usd",
		PaymentMethod:  "card",
		Lines:          []order.Line{{ProductID: productID, Name: "Thing", UnitPrice: 1000, Quantity: 2}},
	})
	require.NoError(t, err)
	return o
}

func reserveNeverOversells(t *testing.T, s Stores) {
	ctx := context.Background()
	id := product(t, s, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Catalog.Reserve(ctx, id, 1)
			if err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	p, err := s.Catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, reserved)
	assert.Zero(t, p.Stock)

	var insufficient *catalog.InsufficientStockError
	require.ErrorAs(t, s.Catalog.Reserve(ctx, id, 1), &insufficient)
	assert.Equal(t, 1, insufficient.Requested)
	assert.ErrorIs(t, s.Catalog.Reserve(ctx, "missing-"+id, 1), catalog.ErrNotFound)

	require.NoError(t, s.Catalog.Release(ctx, id, 3))
	p, err = s.Catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func unitOfWorkRollsBack(t *testing.T, s Stores) {
	ctx := context.Background()
	id := product(t, s, 5)
	o := newOrder(t, "u-"+uuid.NewString(), "", id)
	boom := errors.New("boom")

	err := s.UoW.Do(ctx, func(ctx context.Context) error {
		if err := s.Catalog.Reserve(ctx, id, 2); err != nil {
			return err
		}
		if err := s.Orders.Insert(ctx, o); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.Catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	_, err = s.Orders.Get(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)

	require.NoError(t, s.UoW.Do(ctx, func(ctx context.Context) error {
		if err := s.Catalog.Reserve(ctx, id, 2); err != nil {
			return err
		}
		return s.Orders.Insert(ctx, o)
	}))
	p, err = s.Catalog.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func orderConstraints(t *testing.T, s Stores) {
	ctx := context.Background()
	id := product(t, s, 5)
	user := "u-" + uuid.NewString()

	first := newOrder(t, user, "key-1", id)
	require.NoError(t, s.Orders.Insert(ctx, first))
	assert.ErrorIs(t, s.Orders.Insert(ctx, newOrder(t, user, "key-1", id)), order.ErrConflict)
	require.NoError(t, s.Orders.Insert(ctx, newOrder(t, "other-"+user, "key-1", id)), "keys are scoped per user")
	require.NoError(t, s.Orders.Insert(ctx, newOrder(t, user, "", id)))
	require.NoError(t, s.Orders.Insert(ctx, newOrder(t, user, "", id)), "orders without a key never collide")

	got, err := s.Orders.FindByIdempotencyKey(ctx, user, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, int64(2000), got.Total)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)

	ok, err := s.Orders.ApplyStatus(ctx, first.ID, order.MarkPaid())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Orders.ApplyStatus(ctx, first.ID, order.MarkFailed(order.PaymentFailed))
	require.NoError(t, err)
	assert.False(t, ok, "a paid order is no longer pending")
	_, err = s.Orders.ApplyStatus(ctx, "missing-"+first.ID, order.MarkPaid())
	assert.ErrorIs(t, err, order.ErrNotFound)

	pending, err := s.Orders.ListPendingBefore(ctx, time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	for _, o := range pending {
		assert.NotEqual(t, first.ID, o.ID)
		assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	}
}

func attemptConstraints(t *testing.T, s Stores) {
	ctx := context.Background()
	orderID := uuid.NewString()
	attempt := func(tx string) *payment.Attempt {
		a, err := payment.NewAttempt(uuid.NewString(), orderID, "u1", tx, 2000, "usd", -time.Minute)
		require.NoError(t, err)
		return a
	}
	tx := fmt.Sprintf("pi_%s", uuid.NewString())

	first := attempt(tx)
	require.NoError(t, s.Payments.Insert(ctx, first))
	assert.ErrorIs(t, s.Payments.Insert(ctx, attempt(tx)), payment.ErrDuplicateTransaction)
	assert.ErrorIs(t, s.Payments.Insert(ctx, attempt(tx+"-2")), payment.ErrPendingExists)

	expired, err := s.Payments.ListExpired(ctx, time.Now(), 0)
	require.NoError(t, err)
	found := false
	for _, a := range expired {
		found = found || a.ID == first.ID
	}
	assert.True(t, found)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Payments.Transition(ctx, first.ID, payment.StatusPaid, false, "")
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := s.Payments.FindByTransactionID(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, got.Status)
	_, err = s.Payments.FindPendingByOrder(ctx, orderID)
	assert.ErrorIs(t, err, payment.ErrNotFound)

	require.NoError(t, s.Payments.Insert(ctx, attempt(tx+"-3")), "a new pending attempt is allowed once the old one settled")
	all, err := s.Payments.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func oppositeOrderReservations(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := product(t, s, 100), product(t, s, 100)
	draft := func(first, second string) *order.Order {
		o, err := order.New(order.Draft{
			ID:       uuid.NewString(),
			UserID:   "u-" + uuid.NewString(),
			Currency: "usd",
			Lines: []order.Line{
				{ProductID: first, Name: "Thing", UnitPrice: 1000, Quantity: 1},
				{ProductID: second, Name: "Thing", UnitPrice: 1000, Quantity: 1},
			},
		})
		require.NoError(t, err)
		return o
	}
	forward, backward := draft(a, b), draft(b, a)
	require.Equal(t, forward.Lines[0].ProductID, backward.Lines[0].ProductID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		o := forward
		if i%2 == 1 {
			o = backward
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.UoW.Do(ctx, func(ctx context.Context) error {
				for _, l := range o.Lines {
					if err := s.Catalog.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
						return err
					}
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []string{a, b} {
		p, err := s.Catalog.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 80, p.Stock, id)
	}
}

func cartRoundTrip(t *testing.T, s Stores) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()

	c, err := s.Carts.Get(ctx, user)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.Add("a", 2))
	require.NoError(t, c.Add("b", 1))
	require.NoError(t, s.Carts.Save(ctx, c))

	got, err := s.Carts.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []cart.Item{{ProductID: "a", Quantity: 2}, {ProductID: "b", Quantity: 1}}, got.Items)

	require.NoError(t, s.Carts.Clear(ctx, user))
	got, err = s.Carts.Get(ctx, user)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
