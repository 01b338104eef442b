package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type PaymentRepository struct{ s *Store }

func (r *PaymentRepository) Insert(ctx context.Context, a *domain.Attempt) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("payment repository: id is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.attempts[a.ID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.s.attemptsByTx[a.TransactionID]; exists {
		return domain.ErrDuplicateTransaction
	}
	if a.Status == domain.StatusPending {
		for _, other := range r.s.attempts {
			if other.OrderID == a.OrderID && other.Status == domain.StatusPending {
				return domain.ErrPendingExists
			}
		}
	}
	r.s.attempts[a.ID] = a.Clone()
	r.s.attemptsByTx[a.TransactionID] = a.ID

	r.s.record(ctx, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		delete(r.s.attempts, a.ID)
		delete(r.s.attemptsByTx, a.TransactionID)
	})
	return nil
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Attempt, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.attemptsByTx[transactionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.s.attempts[id].Clone(), nil
}

func (r *PaymentRepository) FindPendingByOrder(ctx context.Context, orderID string) (*domain.Attempt, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.attempts {
		if a.OrderID == orderID && a.Status == domain.StatusPending {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Attempt, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Attempt
	for _, a := range r.s.attempts {
		if a.OrderID == orderID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *PaymentRepository) Transition(ctx context.Context, id string, to domain.Status, suspicious bool, reason string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.attempts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	prev := a.Clone()
	if !a.Transition(to, suspicious, reason, time.Now().UTC()) {
		return false, nil
	}

	r.s.record(ctx, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		r.s.attempts[id] = prev
	})
	return true, nil
}

func (r *PaymentRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Attempt, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Attempt
	for _, a := range r.s.attempts {
		if a.Status == domain.StatusPending && a.ExpiresAt.Before(now) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
