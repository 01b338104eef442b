package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService = "payment-service"
	useCaseLookup  = "payment.lookup_intent"
	processorPeer  = "payment_processor"
)

type LookupCommand struct {
	UserID        string
	TransactionID string
}

// LookupResult pairs what the processor reports with what was recorded locally.
type LookupResult struct {
	Intent  *dompay.Intent
	Attempt *dompay.Attempt
}

type LookupUseCase struct {
	payments  dompay.Repository
	processor dompay.Processor
	in        application.Instrumentation
}

var _ application.UseCase[LookupCommand, *LookupResult] = (*LookupUseCase)(nil)

func NewLookupUseCase(payments dompay.Repository, processor dompay.Processor, tel observability.Observability) *LookupUseCase {
	return &LookupUseCase{
		payments:  payments,
		processor: processor,
		in:        application.NewInstrumentation(tel, paymentService),
	}
}

// Execute only answers for intents opened by this service on behalf of the caller.
func (uc *LookupUseCase) Execute(ctx context.Context, cmd LookupCommand) (_ *LookupResult, err error) {
	ctx, run := uc.in.Start(ctx, useCaseLookup, "LookupIntent",
		attribute.String("payment.transaction_id", cmd.TransactionID),
	)
	defer func() { run.End(err) }()

	if strings.TrimSpace(cmd.UserID) == "" || strings.TrimSpace(cmd.TransactionID) == "" {
		run.Fail("ARGUMENTS_REQUIRED")
		return nil, apperr.Validation("user id and payment intent id are required")
	}

	a, err := uc.payments.FindByTransactionID(ctx, cmd.TransactionID)
	if err != nil {
		if errors.Is(err, dompay.ErrNotFound) {
			run.Fail("ATTEMPT_NOT_FOUND")
			return nil, apperr.Wrap(apperr.ErrNotFound, err)
		}
		run.Fail("ATTEMPT_LOOKUP_FAILED")
		return nil, fmt.Errorf("payment: find attempt: %w", err)
	}
	if a.UserID != cmd.UserID {
		run.Fail("ATTEMPT_NOT_FOUND")
		return nil, apperr.Wrap(apperr.ErrNotFound, dompay.ErrNotFound)
	}
	run.With(observability.F("order_id", a.OrderID))

	var intent *dompay.Intent
	err = uc.in.External(ctx, processorPeer, "retrieve_intent", func(ctx context.Context) error {
		var e error
		intent, e = uc.processor.RetrieveIntent(ctx, a.TransactionID)
		return e
	})
	if err != nil {
		run.Fail("PROCESSOR_UNAVAILABLE")
		return nil, apperr.Wrap(apperr.ErrExternal, fmt.Errorf("payment: retrieve intent: %w", err))
	}
	return &LookupResult{Intent: intent, Attempt: a}, nil
}
