// Package memory keeps every repository in process memory. It backs tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// Store owns the shared maps. Repositories are views onto it so a unit of work spans all of them.
type Store struct {
	mu sync.RWMutex
	// txMu serialises units of work.
	txMu sync.Mutex

	products     map[string]*catalog.Product
	carts        map[string]*cart.Cart
	orders       map[string]*order.Order
	orderKeys    map[string]string
	attempts     map[string]*payment.Attempt
	attemptsByTx map[string]string
}

func NewStore() *Store {
	return &Store{
		products:     make(map[string]*catalog.Product),
		carts:        make(map[string]*cart.Cart),
		orders:       make(map[string]*order.Order),
		orderKeys:    make(map[string]string),
		attempts:     make(map[string]*payment.Attempt),
		attemptsByTx: make(map[string]string),
	}
}

func (s *Store) Catalog() *CatalogRepository { return &CatalogRepository{s: s} }
func (s *Store) Carts() *CartRepository       { return &CartRepository{s: s} }
func (s *Store) Orders() *OrderRepository     { return &OrderRepository{s: s} }
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s: s} }
func (s *Store) UnitOfWork() *UnitOfWork      { return &UnitOfWork{s: s} }

type journalKey struct{}

// journal collects undo steps for the writes done inside one unit of work.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *journal) add(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = append(j.undo, fn)
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// record registers an undo step when ctx belongs to a unit of work.
// Undo steps run without s.mu held and must lock it themselves.
func (s *Store) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok && j != nil {
		j.add(undo)
	}
}

type UnitOfWork struct{ s *Store }

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	u.s.txMu.Lock()
	defer u.s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}
