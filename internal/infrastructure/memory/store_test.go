package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	p, err := catalog.NewProduct(id, "Product "+id, 1000, stock)
	require.NoError(t, err)
	require.NoError(t, s.Catalog().Upsert(context.Background(), p))
}

func newOrder(t *testing.T, id, user, key string) *order.Order {
	t.Helper()
	o, err := order.New(order.Draft{
		ID:             id,
		UserID:         user,
		IdempotencyKey: key,
		Currency:       "usd",
		Lines:          []order.Line{{ProductID: "p1", Name: "Mug", UnitPrice: 1000, Quantity: 2}},
	})
	require.NoError(t, err)
	return o
}

func TestReserveNeverOversells(t *testing.T) {
	s := NewStore()
	seed(t, s, "p1", 10)
	repo := s.Catalog()

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(context.Background(), "p1", 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, catalog.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, int32(90), short.Load())
	p, err := repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestReserveReportsAvailable(t *testing.T) {
	s := NewStore()
	seed(t, s, "p1", 1)

	err := s.Catalog().Reserve(context.Background(), "p1", 2)
	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)

	assert.ErrorIs(t, s.Catalog().Reserve(context.Background(), "missing", 1), catalog.ErrNotFound)
	assert.ErrorIs(t, s.Catalog().Release(context.Background(), "p1", 0), catalog.ErrInvalidQuantity)
}

func TestUnitOfWorkRollsBackEveryRepository(t *testing.T) {
	s := NewStore()
	seed(t, s, "p1", 5)
	ctx := context.Background()
	c := cart.New("u1")
	require.NoError(t, c.Add("p1", 2))
	require.NoError(t, s.Carts().Save(ctx, c))

	boom := errors.New("boom")
	err := s.UnitOfWork().Do(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Catalog().Reserve(ctx, "p1", 2))
		require.NoError(t, s.Orders().Insert(ctx, newOrder(t, "o1", "u1", "k1")))
		a, err := payment.NewAttempt("a1", "o1", "u1", "pi_1", 2000, "usd", time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.Payments().Insert(ctx, a))
		require.NoError(t, s.Carts().Clear(ctx, "u1"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, _ := s.Catalog().Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
	_, err = s.Orders().Get(ctx, "o1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	_, err = s.Orders().FindByIdempotencyKey(ctx, "u1", "k1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	_, err = s.Payments().FindByTransactionID(ctx, "pi_1")
	assert.ErrorIs(t, err, payment.ErrNotFound)
	got, _ := s.Carts().Get(ctx, "u1")
	assert.Len(t, got.Items, 1)
}

func TestUnitOfWorkRollsBackStatusChanges(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Orders().Insert(ctx, newOrder(t, "o1", "u1", "")))
	a, err := payment.NewAttempt("a1", "o1", "u1", "pi_1", 2000, "usd", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Payments().Insert(ctx, a))

	err = s.UnitOfWork().Do(ctx, func(ctx context.Context) error {
		ok, err := s.Payments().Transition(ctx, "a1", payment.StatusPaid, false, "")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = s.Orders().ApplyStatus(ctx, "o1", order.MarkPaid())
		require.NoError(t, err)
		require.True(t, ok)
		return errors.New("crash between commit points")
	})
	require.Error(t, err)

	o, _ := s.Orders().Get(ctx, "o1")
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	got, _ := s.Payments().FindByTransactionID(ctx, "pi_1")
	assert.Equal(t, payment.StatusPending, got.Status)
}

func TestNestedUnitOfWorkJoinsOuter(t *testing.T) {
	s := NewStore()
	seed(t, s, "p1", 5)
	ctx := context.Background()
	uow := s.UnitOfWork()

	err := uow.Do(ctx, func(ctx context.Context) error {
		require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
			return s.Catalog().Reserve(ctx, "p1", 3)
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	p, _ := s.Catalog().Get(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
}

func TestOrderIdempotencyKeyIsPerUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Orders()

	require.NoError(t, repo.Insert(ctx, newOrder(t, "o1", "u1", "k")))
	assert.ErrorIs(t, repo.Insert(ctx, newOrder(t, "o2", "u1", "k")), order.ErrConflict)
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o3", "u2", "k")))

	got, err := repo.FindByIdempotencyKey(ctx, "u2", "k")
	require.NoError(t, err)
	assert.Equal(t, "o3", got.ID)
}

func TestApplyStatusIsConditional(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Orders().Insert(ctx, newOrder(t, "o1", "u1", "")))

	ok, err := s.Orders().ApplyStatus(ctx, "o1", order.MarkPaid())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Orders().ApplyStatus(ctx, "o1", order.MarkFailed(order.PaymentFailed))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Orders().ApplyStatus(ctx, "missing", order.MarkPaid())
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestPaymentInsertConstraints(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Payments()

	a1, _ := payment.NewAttempt("a1", "o1", "u1", "pi_1", 100, "usd", time.Minute)
	require.NoError(t, repo.Insert(ctx, a1))

	dupTx, _ := payment.NewAttempt("a2", "o2", "u1", "pi_1", 100, "usd", time.Minute)
	assert.ErrorIs(t, repo.Insert(ctx, dupTx), payment.ErrDuplicateTransaction)

	secondPending, _ := payment.NewAttempt("a3", "o1", "u1", "pi_3", 100, "usd", time.Minute)
	assert.ErrorIs(t, repo.Insert(ctx, secondPending), payment.ErrPendingExists)

	ok, err := repo.Transition(ctx, "a1", payment.StatusFailed, false, "declined")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.Insert(ctx, secondPending), "a retry is allowed once the earlier attempt is terminal")

	all, err := repo.ListByOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPaymentTransitionOnlyFromPending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Payments()
	a, _ := payment.NewAttempt("a1", "o1", "u1", "pi_1", 100, "usd", time.Minute)
	require.NoError(t, repo.Insert(ctx, a))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Transition(ctx, "a1", payment.StatusPaid, false, "")
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestListExpiredAndPendingBefore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	expired, _ := payment.NewAttempt("a1", "o1", "u1", "pi_1", 100, "usd", -time.Minute)
	fresh, _ := payment.NewAttempt("a2", "o2", "u1", "pi_2", 100, "usd", time.Hour)
	require.NoError(t, s.Payments().Insert(ctx, expired))
	require.NoError(t, s.Payments().Insert(ctx, fresh))

	got, err := s.Payments().ListExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)

	require.NoError(t, s.Orders().Insert(ctx, newOrder(t, "o1", "u1", "")))
	pending, err := s.Orders().ListPendingBefore(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	pending, err = s.Orders().ListPendingBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
