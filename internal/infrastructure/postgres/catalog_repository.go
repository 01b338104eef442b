package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/jackc/pgx/v5"
)

const (
	reserveStock = `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`
	releaseStock = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`
)

type CatalogRepository struct{ s *Store }

func (r *CatalogRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.s.q(ctx).QueryRow(ctx,
		`SELECT id, name, price, stock, updated_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get product: %w", err)
	}
	return &p, nil
}

func (r *CatalogRepository) List(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.s.q(ctx).Query(ctx, `SELECT id, name, price, stock, updated_at FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) Upsert(ctx context.Context, p *domain.Product) error {
	_, err := r.s.q(ctx).Exec(ctx, `
		INSERT INTO products (id, name, price, stock, updated_at) VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			stock = EXCLUDED.stock, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.Price, p.Stock)
	if err != nil {
		return fmt.Errorf("postgres: upsert product: %w", err)
	}
	return nil
}

// Reserve is a single conditional UPDATE, so concurrent reservations cannot oversell.
func (r *CatalogRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	tag, err := r.s.q(ctx).Exec(ctx, reserveStock, productID, quantity)
	if err != nil {
		return fmt.Errorf("postgres: reserve stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	p, err := r.Get(ctx, productID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: quantity}
}

func (r *CatalogRepository) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	tag, err := r.s.q(ctx).Exec(ctx, releaseStock, productID, quantity)
	if err != nil {
		return fmt.Errorf("postgres: release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
