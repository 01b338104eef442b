package order

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed, PaymentCanceled},
}

var shippingTransitions = map[ShippingStatus][]ShippingStatus{
	ShippingPending: {ShippingShipped, ShippingCancelled},
	ShippingShipped: {ShippingDelivered},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return allowed(paymentTransitions[from], to)
}

func CanTransitionShipping(from, to ShippingStatus) bool {
	return allowed(shippingTransitions[from], to)
}

func allowed[S comparable](next []S, to S) bool {
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// StatusChange is a conditional update: the Expect fields must equal the stored
// values for the change to apply. Empty fields mean "no condition" and "no change".
type StatusChange struct {
	ExpectPayment  PaymentStatus
	Payment        PaymentStatus
	ExpectShipping ShippingStatus
	Shipping       ShippingStatus
}

// Validate rejects changes that the transition tables forbid.
func (c StatusChange) Validate() error {
	if c.Payment != "" && (c.ExpectPayment == "" || !CanTransitionPayment(c.ExpectPayment, c.Payment)) {
		return ErrInvalidTransition
	}
	if c.Shipping != "" && (c.ExpectShipping == "" || !CanTransitionShipping(c.ExpectShipping, c.Shipping)) {
		return ErrInvalidTransition
	}
	if c.Payment == "" && c.Shipping == "" {
		return ErrInvalidTransition
	}
	return nil
}

func (c StatusChange) Matches(o *Order) bool {
	if c.ExpectPayment != "" && o.PaymentStatus != c.ExpectPayment {
		return false
	}
	if c.ExpectShipping != "" && o.ShippingStatus != c.ExpectShipping {
		return false
	}
	return true
}

// MarkPaid moves a pending order to paid.
func MarkPaid() StatusChange {
	return StatusChange{ExpectPayment: PaymentPending, Payment: PaymentPaid}
}

// MarkFailed moves a pending order to failed or canceled.
func MarkFailed(to PaymentStatus) StatusChange {
	return StatusChange{ExpectPayment: PaymentPending, Payment: to}
}

// MarkCanceled cancels both payment and shipping of an order that has not been paid.
func MarkCanceled() StatusChange {
	return StatusChange{
		ExpectPayment:  PaymentPending,
		Payment:        PaymentCanceled,
		ExpectShipping: ShippingPending,
		Shipping:       ShippingCancelled,
	}
}

// AdvanceShipping moves a paid order's shipping forward.
func AdvanceShipping(from, to ShippingStatus) StatusChange {
	return StatusChange{ExpectPayment: PaymentPaid, ExpectShipping: from, Shipping: to}
}
