package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const workerService = "notification-worker"

// Notifications turns settled payment events into customer notifications.
// Handler errors are logged by the bus and never reach reconciliation.
type Notifications struct {
	uc  application.UseCase[notification.Command, *notification.Result]
	log observability.Logger
}

func NewNotifications(uc application.UseCase[notification.Command, *notification.Result], logger observability.Logger) *Notifications {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Notifications{uc: uc, log: logger.With(observability.F("service", workerService))}
}

func (n *Notifications) Start(sub domoutbox.Subscriber) {
	if sub == nil || n.uc == nil {
		return
	}
	sub.Subscribe(domorder.PaidEvent{}.EventName(), n.handlePaid)
	sub.Subscribe(domorder.PaymentFailedEvent{}.EventName(), n.handleFailed)
}

func (n *Notifications) handlePaid(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PaidEvent)
	if !ok {
		return nil
	}
	ctx = WithEventContext(ctx, n.log, e, nil)
	_, err := n.uc.Execute(ctx, notification.Command{
		Kind:     notification.KindReceipt,
		OrderID:  evt.OrderID,
		Name:     evt.Contact.Name,
		Email:    evt.Contact.Email,
		Amount:   evt.Amount,
		Currency: evt.Currency,
	})
	return err
}

func (n *Notifications) handleFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PaymentFailedEvent)
	if !ok {
		return nil
	}
	ctx = WithEventContext(ctx, n.log, e, map[string]string{"payment_status": string(evt.Status)})
	_, err := n.uc.Execute(ctx, notification.Command{
		Kind:    notification.KindFailure,
		OrderID: evt.OrderID,
		Name:    evt.Contact.Name,
		Email:   evt.Contact.Email,
		Reason:  evt.Reason,
	})
	return err
}
