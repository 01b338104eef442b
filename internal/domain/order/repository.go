package order

import (
	"context"
	"time"
)

type Repository interface {
	// Insert fails with ErrConflict when the id or the (user, idempotency key) pair exists.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error)
	// ApplyStatus applies change atomically, reporting false when its expectations no longer hold.
	ApplyStatus(ctx context.Context, id string, change StatusChange) (bool, error)
	// ListPendingBefore returns orders still awaiting payment that were created before cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)
}
