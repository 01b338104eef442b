package memory

import (
	"context"
	"sort"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
)

type CatalogRepository struct{ s *Store }

func (r *CatalogRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *CatalogRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CatalogRepository) Upsert(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidProduct
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev := r.s.products[p.ID].Clone()
	next := p.Clone()
	next.UpdatedAt = time.Now().UTC()
	r.s.products[p.ID] = next

	r.s.record(ctx, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		if prev == nil {
			delete(r.s.products, p.ID)
			return
		}
		r.s.products[p.ID] = prev
	})
	return nil
}

func (r *CatalogRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Stock < quantity {
		return &domain.InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: quantity}
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()

	r.s.record(ctx, func() { r.adjust(productID, quantity) })
	return nil
}

func (r *CatalogRepository) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now().UTC()

	r.s.record(ctx, func() { r.adjust(productID, -quantity) })
	return nil
}

func (r *CatalogRepository) adjust(productID string, delta int) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.products[productID]; ok {
		p.Stock += delta
	}
}
