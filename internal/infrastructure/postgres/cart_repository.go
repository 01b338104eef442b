package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/jackc/pgx/v5"
)

type cartItemRow struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartRepository struct{ s *Store }

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := r.s.q(ctx).QueryRow(ctx,
		`SELECT items, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get cart: %w", err)
	}

	var items []cartItemRow
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("postgres: decode cart items: %w", err)
	}
	c := domain.New(userID)
	c.UpdatedAt = updatedAt
	for _, it := range items {
		c.Items = append(c.Items, domain.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	if c == nil || c.UserID == "" {
		return fmt.Errorf("postgres: cart user id is required")
	}
	items := make([]cartItemRow, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemRow{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("postgres: encode cart items: %w", err)
	}
	_, err = r.s.q(ctx).Exec(ctx, `
		INSERT INTO carts (user_id, items, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`,
		c.UserID, raw)
	if err != nil {
		return fmt.Errorf("postgres: save cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.s.q(ctx).Exec(ctx, `
		INSERT INTO carts (user_id, items, updated_at) VALUES ($1, '[]', now())
		ON CONFLICT (user_id) DO UPDATE SET items = '[]', updated_at = now()`, userID)
	if err != nil {
		return fmt.Errorf("postgres: clear cart: %w", err)
	}
	return nil
}
