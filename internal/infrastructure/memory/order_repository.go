package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type OrderRepository struct{ s *Store }

func idempotencyKey(userID, key string) string { return userID + "\x00" + key }

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	var key string
	if order.IdempotencyKey != "" {
		key = idempotencyKey(order.UserID, order.IdempotencyKey)
		if _, exists := r.s.orderKeys[key]; exists {
			return domain.ErrConflict
		}
		r.s.orderKeys[key] = order.ID
	}
	r.s.orders[order.ID] = cloneOrder(order)

	r.s.record(ctx, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		delete(r.s.orders, order.ID)
		if key != "" {
			delete(r.s.orderKeys, key)
		}
	})
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	order, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return cloneOrder(order), nil
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	orderID, ok := r.s.orderKeys[idempotencyKey(userID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}

	order, found := r.s.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}

	return cloneOrder(order), nil
}

func (r *OrderRepository) ApplyStatus(ctx context.Context, id string, change domain.StatusChange) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	prev := cloneOrder(order)
	if !order.Apply(change, time.Now().UTC()) {
		return false, nil
	}

	r.s.record(ctx, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		r.s.orders[id] = prev
	})
	return true, nil
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.s.orders {
		if o.PaymentStatus == domain.PaymentPending && o.CreatedAt.Before(cutoff) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	if order == nil {
		return nil
	}
	clone := order.Clone()
	return clone
}
