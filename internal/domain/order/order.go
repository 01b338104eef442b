package order

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrNoLines           = errors.New("order: at least one line item is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount     = errors.New("order: amount must be zero or greater")
	ErrInvalidOwner      = errors.New("order: user id is required")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentCanceled PaymentStatus = "canceled"
)

type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "pending"
	ShippingShipped   ShippingStatus = "shipped"
	ShippingDelivered ShippingStatus = "delivered"
	ShippingCancelled ShippingStatus = "cancelled"
)

// Line is a priced snapshot of a product taken at checkout.
type Line struct {
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	LineTotal int64
}

// Contact is the delivery and notification contact captured with the order.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

type Order struct {
	ID             string
	UserID         string
	IdempotencyKey string
	Lines          []Line
	Total          int64
	Currency       string
	PaymentMethod  string
	ShippingMethod string
	Contact        Contact
	PaymentStatus  PaymentStatus
	ShippingStatus ShippingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Draft carries everything needed to place an order except derived totals.
type Draft struct {
	ID             string
	UserID         string
	IdempotencyKey string
	Currency       string
	PaymentMethod  string
	ShippingMethod string
	Contact        Contact
	Lines          []Line
}

// New snapshots the draft lines, computing each line total and the order total in minor units.
func New(d Draft) (*Order, error) {
	if strings.TrimSpace(d.UserID) == "" {
		return nil, ErrInvalidOwner
	}
	if len(d.Lines) == 0 {
		return nil, ErrNoLines
	}

	lines := make([]Line, len(d.Lines))
	totals := make([]int64, len(d.Lines))
	for i, l := range d.Lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
		lt, err := money.LineTotal(l.UnitPrice, l.Quantity)
		if err != nil {
			return nil, err
		}
		l.LineTotal = lt
		lines[i] = l
		totals[i] = lt
	}
	total, err := money.Sum(totals...)
	if err != nil {
		return nil, err
	}
	// Stock rows are locked in line order, so every order walks products the same way.
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	now := time.Now().UTC()
	return &Order{
		ID:             d.ID,
		UserID:         d.UserID,
		IdempotencyKey: d.IdempotencyKey,
		Lines:          lines,
		Total:          total,
		Currency:       strings.ToLower(d.Currency),
		PaymentMethod:  d.PaymentMethod,
		ShippingMethod: d.ShippingMethod,
		Contact:        d.Contact,
		PaymentStatus:  PaymentPending,
		ShippingStatus: ShippingPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ExpectedTotal recomputes the charge from the snapshotted lines rather than trusting Total.
func (o *Order) ExpectedTotal() int64 {
	var sum int64
	for _, l := range o.Lines {
		sum += l.UnitPrice * int64(l.Quantity)
	}
	return sum
}

// Apply performs change if its expectations hold, reporting whether it matched.
func (o *Order) Apply(change StatusChange, now time.Time) bool {
	if !change.Matches(o) {
		return false
	}
	if change.Payment != "" {
		o.PaymentStatus = change.Payment
	}
	if change.Shipping != "" {
		o.ShippingStatus = change.Shipping
	}
	o.UpdatedAt = now
	return true
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	return &c
}
