package memory

import (
	"context"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

type CartRepository struct{ s *Store }

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.carts[userID]
	if !ok {
		return domain.New(userID), nil
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	if c == nil || c.UserID == "" {
		return fmt.Errorf("cart repository: user id is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.put(ctx, c.Clone())
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.put(ctx, &domain.Cart{UserID: userID, UpdatedAt: time.Now().UTC()})
	return nil
}

// put must be called with r.s.mu held.
func (r *CartRepository) put(ctx context.Context, c *domain.Cart) {
	prev := r.s.carts[c.UserID].Clone()
	r.s.carts[c.UserID] = c
	r.s.record(ctx, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		if prev == nil {
			delete(r.s.carts, c.UserID)
			return
		}
		r.s.carts[c.UserID] = prev
	})
}
