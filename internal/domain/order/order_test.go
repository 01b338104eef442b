package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(lines ...Line) Draft {
	return Draft{ID: "o1", UserID: "u1", Currency: "USD", Lines: lines}
}

func TestNewComputesTotalsInMinorUnits(t *testing.T) {
	o, err := New(draft(
		Line{ProductID: "p1", Name: "Mug", UnitPrice: 1000, Quantity: 2},
		Line{ProductID: "p2", Name: "Pen", UnitPrice: 199, Quantity: 3},
	))
	require.NoError(t, err)

	assert.Equal(t, int64(2000), o.Lines[0].LineTotal)
	assert.Equal(t, int64(597), o.Lines[1].LineTotal)
	assert.Equal(t, int64(2597), o.Total)
	assert.Equal(t, o.Total, o.ExpectedTotal())
	assert.Equal(t, "usd", o.Currency)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, ShippingPending, o.ShippingStatus)
}

func TestNewRejectsInvalidDrafts(t *testing.T) {
	_, err := New(draft())
	assert.ErrorIs(t, err, ErrNoLines)

	_, err = New(draft(Line{ProductID: "p1", UnitPrice: 100, Quantity: 0}))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New(draft(Line{ProductID: "p1", UnitPrice: -1, Quantity: 1}))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	d := draft(Line{ProductID: "p1", UnitPrice: 1, Quantity: 1})
	d.UserID = ""
	_, err = New(d)
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestNewCopiesLines(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: 100, Quantity: 1}}
	o, err := New(draft(lines...))
	require.NoError(t, err)

	lines[0].UnitPrice = 999
	assert.Equal(t, int64(100), o.Lines[0].UnitPrice)
}

func TestNewSortsLinesByProduct(t *testing.T) {
	o, err := New(draft(
		Line{ProductID: "tea", UnitPrice: 450, Quantity: 1},
		Line{ProductID: "mug", UnitPrice: 1000, Quantity: 2},
		Line{ProductID: "pen", UnitPrice: 199, Quantity: 3},
	))
	require.NoError(t, err)

	got := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		got = append(got, l.ProductID)
	}
	assert.Equal(t, []string{"mug", "pen", "tea"}, got)
	assert.Equal(t, int64(2000), o.Lines[0].LineTotal)
	assert.Equal(t, int64(450+2000+597), o.Total)
}

func TestApplyIsConditional(t *testing.T) {
	o, err := New(draft(Line{ProductID: "p1", UnitPrice: 100, Quantity: 1}))
	require.NoError(t, err)
	now := time.Now().UTC()

	assert.True(t, o.Apply(MarkPaid(), now))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	assert.False(t, o.Apply(MarkFailed(PaymentFailed), now), "paid orders stay paid")
	assert.False(t, o.Apply(MarkCanceled(), now))

	assert.True(t, o.Apply(AdvanceShipping(ShippingPending, ShippingShipped), now))
	assert.False(t, o.Apply(AdvanceShipping(ShippingPending, ShippingShipped), now))
	assert.True(t, o.Apply(AdvanceShipping(ShippingShipped, ShippingDelivered), now))
}

func TestStatusChangeValidate(t *testing.T) {
	assert.NoError(t, MarkPaid().Validate())
	assert.NoError(t, MarkCanceled().Validate())
	assert.NoError(t, AdvanceShipping(ShippingShipped, ShippingDelivered).Validate())

	assert.ErrorIs(t, AdvanceShipping(ShippingDelivered, ShippingShipped).Validate(), ErrInvalidTransition)
	assert.ErrorIs(t, StatusChange{ExpectPayment: PaymentPaid, Payment: PaymentPending}.Validate(), ErrInvalidTransition)
	assert.ErrorIs(t, StatusChange{Payment: PaymentPaid}.Validate(), ErrInvalidTransition)
	assert.ErrorIs(t, StatusChange{}.Validate(), ErrInvalidTransition)
}

func TestTerminalPaymentStatusesHaveNoExits(t *testing.T) {
	for _, from := range []PaymentStatus{PaymentPaid, PaymentFailed, PaymentCanceled} {
		for _, to := range []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentCanceled} {
			assert.False(t, CanTransitionPayment(from, to), "%s -> %s", from, to)
		}
	}
}
