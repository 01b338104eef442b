package catalog

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	// Upsert stores name, price and stock as given.
	Upsert(ctx context.Context, p *Product) error
	// Reserve decrements stock by quantity only if at least quantity is available.
	// It returns *InsufficientStockError when the condition does not hold.
	Reserve(ctx context.Context, productID string, quantity int) error
	// Release increments stock by quantity.
	Release(ctx context.Context, productID string, quantity int) error
}
