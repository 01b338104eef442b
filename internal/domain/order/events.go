package order

import "time"

// PlacedEvent is emitted once an order and its stock reservation are committed.
type PlacedEvent struct {
	OrderID    string
	UserID     string
	Total      int64
	Currency   string
	OccurredAt time.Time
}

func (PlacedEvent) EventName() string { return "order.placed" }

func (e PlacedEvent) AggregateID() string { return e.OrderID }

func NewPlacedEvent(o *Order) PlacedEvent {
	return PlacedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
		Currency:   o.Currency,
		OccurredAt: time.Now().UTC(),
	}
}

// PaidEvent is emitted when reconciliation confirms the order's payment.
type PaidEvent struct {
	OrderID       string
	UserID        string
	TransactionID string
	Amount        int64
	Currency      string
	Contact       Contact
	OccurredAt    time.Time
}

func (PaidEvent) EventName() string { return "order.paid" }

func (e PaidEvent) AggregateID() string { return e.OrderID }

func NewPaidEvent(o *Order, transactionID string) PaidEvent {
	return PaidEvent{
		OrderID:       o.ID,
		UserID:        o.UserID,
		TransactionID: transactionID,
		Amount:        o.Total,
		Currency:      o.Currency,
		Contact:       o.Contact,
		OccurredAt:    time.Now().UTC(),
	}
}

// PaymentFailedEvent is emitted when an order's payment fails, is canceled or expires.
type PaymentFailedEvent struct {
	OrderID    string
	UserID     string
	Status     PaymentStatus
	Reason     string
	Contact    Contact
	OccurredAt time.Time
}

func (PaymentFailedEvent) EventName() string { return "order.payment_failed" }

func (e PaymentFailedEvent) AggregateID() string { return e.OrderID }

func NewPaymentFailedEvent(o *Order, status PaymentStatus, reason string) PaymentFailedEvent {
	return PaymentFailedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     status,
		Reason:     reason,
		Contact:    o.Contact,
		OccurredAt: time.Now().UTC(),
	}
}

// ShippingUpdatedEvent is emitted when a paid order's shipping status advances.
type ShippingUpdatedEvent struct {
	OrderID    string
	From       ShippingStatus
	To         ShippingStatus
	OccurredAt time.Time
}

func (ShippingUpdatedEvent) EventName() string { return "order.shipping_updated" }

func (e ShippingUpdatedEvent) AggregateID() string { return e.OrderID }

func NewShippingUpdatedEvent(id string, from, to ShippingStatus) ShippingUpdatedEvent {
	return ShippingUpdatedEvent{OrderID: id, From: from, To: to, OccurredAt: time.Now().UTC()}
}
