package payment

import "time"

// SucceededEvent is emitted when an attempt is reconciled as paid.
type SucceededEvent struct {
	AttemptID     string
	OrderID       string
	TransactionID string
	Amount        int64
	Currency      string
	Suspicious    bool
	OccurredAt    time.Time
}

func (SucceededEvent) EventName() string { return "payment.succeeded" }

func (e SucceededEvent) AggregateID() string { return e.OrderID }

func NewSucceededEvent(a *Attempt, suspicious bool) SucceededEvent {
	return SucceededEvent{
		AttemptID:     a.ID,
		OrderID:       a.OrderID,
		TransactionID: a.TransactionID,
		Amount:        a.Amount,
		Currency:      a.Currency,
		Suspicious:    suspicious,
		OccurredAt:    time.Now().UTC(),
	}
}

// FailedEvent is emitted when an attempt ends failed or canceled.
type FailedEvent struct {
	AttemptID     string
	OrderID       string
	TransactionID string
	Status        Status
	Reason        string
	OccurredAt    time.Time
}

func (FailedEvent) EventName() string { return "payment.failed" }

func (e FailedEvent) AggregateID() string { return e.OrderID }

func NewFailedEvent(a *Attempt, status Status, reason string) FailedEvent {
	return FailedEvent{
		AttemptID:     a.ID,
		OrderID:       a.OrderID,
		TransactionID: a.TransactionID,
		Status:        status,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}

// FlaggedEvent is emitted when a processor event disagrees with the order record.
type FlaggedEvent struct {
	AttemptID      string
	OrderID        string
	TransactionID  string
	ExpectedAmount int64
	ReportedAmount int64
	Reason         string
	OccurredAt     time.Time
}

func (FlaggedEvent) EventName() string { return "payment.flagged" }

func (e FlaggedEvent) AggregateID() string { return e.OrderID }

func NewFlaggedEvent(a *Attempt, expected, reported int64, reason string) FlaggedEvent {
	return FlaggedEvent{
		AttemptID:      a.ID,
		OrderID:        a.OrderID,
		TransactionID:  a.TransactionID,
		ExpectedAmount: expected,
		ReportedAmount: reported,
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	}
}
