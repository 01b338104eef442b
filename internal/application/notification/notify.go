package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	notificationService = "notification-service"
	useCaseNotify       = "notification.payment"
	notifierPeer        = "notifier"
)

type Kind string

const (
	KindReceipt Kind = "receipt"
	KindFailure Kind = "payment_failure"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a message to a customer.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

type Command struct {
	Kind     Kind
	OrderID  string
	Name     string
	Email    string
	Amount   int64
	Currency string
	Reason   string
}

type Result struct {
	Sent bool
}

// UseCase tells the customer how their payment ended.
type UseCase struct {
	notifier Notifier
	in       application.Instrumentation
}

var _ application.UseCase[Command, *Result] = (*UseCase)(nil)

func New(notifier Notifier, tel observability.Observability) *UseCase {
	return &UseCase{notifier: notifier, in: application.NewInstrumentation(tel, notificationService)}
}

func (uc *UseCase) Execute(ctx context.Context, cmd Command) (_ *Result, err error) {
	ctx, run := uc.in.Start(ctx, useCaseNotify, "NotifyPayment",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("notification.kind", string(cmd.Kind)),
	)
	defer func() { run.End(err) }()
	run.With(
		observability.F("order_id", cmd.OrderID),
		observability.F("kind", string(cmd.Kind)),
	)

	if strings.TrimSpace(cmd.Email) == "" {
		run.Status("NO_CONTACT")
		return &Result{}, nil
	}
	msg, err := compose(cmd)
	if err != nil {
		run.Fail("KIND_UNKNOWN")
		return nil, err
	}

	err = uc.in.External(ctx, notifierPeer, string(cmd.Kind), func(ctx context.Context) error {
		return uc.notifier.Send(ctx, msg)
	})
	if err != nil {
		run.Fail("SEND_FAILED")
		return nil, apperr.Wrap(apperr.ErrExternal, fmt.Errorf("notification: send %s: %w", cmd.Kind, err))
	}
	return &Result{Sent: true}, nil
}

func compose(cmd Command) (Message, error) {
	name := cmd.Name
	if name == "" {
		name = "there"
	}
	switch cmd.Kind {
	case KindReceipt:
		return Message{
			To:      cmd.Email,
			Subject: fmt.Sprintf("Payment received for order %s", cmd.OrderID),
			Body: fmt.Sprintf("Hi %s,\n\nWe received your payment of %s %s for order %s.\n",
				name, money.Format(cmd.Amount), strings.ToUpper(cmd.Currency), cmd.OrderID),
		}, nil
	case KindFailure:
		reason := cmd.Reason
		if reason == "" {
			reason = "the payment did not complete"
		}
		return Message{
			To:      cmd.Email,
			Subject: fmt.Sprintf("Payment for order %s did not go through", cmd.OrderID),
			Body: fmt.Sprintf("Hi %s,\n\nThe payment for order %s was not completed (%s). Any reserved items have been released.\n",
				name, cmd.OrderID, reason),
		}, nil
	}
	return Message{}, apperr.Validation(fmt.Sprintf("unknown notification kind %q", cmd.Kind))
}
