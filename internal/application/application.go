package application

import "context"

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// UnitOfWork runs fn so that every repository write it performs commits or rolls back together.
// Repositories called with the ctx passed to fn join the unit; nested Do calls join the outer one.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type IDGenerator interface {
	NewID() string
}
