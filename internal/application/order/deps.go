package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	orderService  = "order-service"
	processorPeer = "payment_processor"
)

type Deps struct {
	Catalog   catalog.Repository
	Orders    domain.Repository
	Payments  payment.Repository
	Processor payment.Processor
	UoW       application.UnitOfWork
	Publisher domoutbox.Publisher
	Tel       observability.Observability
}

func releaseLines(ctx context.Context, repo catalog.Repository, o *domain.Order) error {
	for _, l := range o.Lines {
		if err := repo.Release(ctx, l.ProductID, l.Quantity); err != nil {
			return fmt.Errorf("release %s: %w", l.ProductID, err)
		}
	}
	return nil
}
