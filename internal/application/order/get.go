package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseGet = "order.get"

type GetCommand struct {
	UserID  string
	OrderID string
}

type GetResult struct {
	Order    *domain.Order
	Attempts []*payment.Attempt
}

// GetUseCase returns an order to its owner together with its payment attempts.
type GetUseCase struct {
	deps Deps
	in   application.Instrumentation
}

var _ application.UseCase[GetCommand, *GetResult] = (*GetUseCase)(nil)

func NewGetUseCase(deps Deps) *GetUseCase {
	return &GetUseCase{deps: deps, in: application.NewInstrumentation(deps.Tel, orderService)}
}

func (uc *GetUseCase) Execute(ctx context.Context, cmd GetCommand) (_ *GetResult, err error) {
	ctx, run := uc.in.Start(ctx, useCaseGet, "GetOrder", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	if strings.TrimSpace(cmd.OrderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, apperr.Validation("order id is required")
	}
	o, err := loadOwned(ctx, uc.deps.Orders, cmd.UserID, cmd.OrderID)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, err
	}
	attempts, err := uc.deps.Payments.ListByOrder(ctx, o.ID)
	if err != nil {
		run.Fail("ATTEMPT_LOOKUP_FAILED")
		return nil, fmt.Errorf("order: list attempts: %w", err)
	}
	return &GetResult{Order: o, Attempts: attempts}, nil
}

// loadOwned hides orders of other users behind ErrNotFound.
func loadOwned(ctx context.Context, repo domain.Repository, userID, orderID string) (*domain.Order, error) {
	o, err := repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperr.Wrap(apperr.ErrNotFound, err)
		}
		return nil, fmt.Errorf("order: load %s: %w", orderID, err)
	}
	if userID != "" && o.UserID != userID {
		return nil, apperr.Wrap(apperr.ErrNotFound, domain.ErrNotFound)
	}
	return o, nil
}
