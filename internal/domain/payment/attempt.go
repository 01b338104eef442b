package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound             = errors.New("payment: attempt not found")
	ErrConflict             = errors.New("payment: conflict")
	ErrDuplicateTransaction = fmt.Errorf("%w: transaction id already recorded", ErrConflict)
	ErrPendingExists        = fmt.Errorf("%w: order already has a pending attempt", ErrConflict)
	ErrInvalidAttempt       = errors.New("payment: attempt requires order id, transaction id and a non-negative amount")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool { return s != StatusPending }

// Attempt records one charge opened with the processor for an order.
type Attempt struct {
	ID            string
	OrderID       string
	UserID        string
	TransactionID string
	Amount        int64
	Currency      string
	Status        Status
	Suspicious    bool
	FailureReason string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewAttempt(id, orderID, userID, transactionID string, amount int64, currency string, ttl time.Duration) (*Attempt, error) {
	if orderID == "" || transactionID == "" || amount < 0 {
		return nil, ErrInvalidAttempt
	}
	now := time.Now().UTC()
	return &Attempt{
		ID:            id,
		OrderID:       orderID,
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      currency,
		Status:        StatusPending,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Transition moves a pending attempt to a terminal status, reporting whether it applied.
func (a *Attempt) Transition(to Status, suspicious bool, reason string, now time.Time) bool {
	if a.Status.Terminal() || !to.Terminal() {
		return false
	}
	a.Status = to
	a.Suspicious = a.Suspicious || suspicious
	if reason != "" {
		a.FailureReason = reason
	}
	a.UpdatedAt = now
	return true
}

func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

type Repository interface {
	// Insert fails with ErrDuplicateTransaction or ErrPendingExists.
	Insert(ctx context.Context, a *Attempt) error
	FindByTransactionID(ctx context.Context, transactionID string) (*Attempt, error)
	FindPendingByOrder(ctx context.Context, orderID string) (*Attempt, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Attempt, error)
	// Transition updates the attempt only while it is still pending.
	Transition(ctx context.Context, id string, to Status, suspicious bool, reason string) (bool, error)
	// ListExpired returns pending attempts whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Attempt, error)
}
