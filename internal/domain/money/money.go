// Package money converts between decimal price strings and integer minor units.
// All arithmetic on amounts happens in minor units.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Exponent is the number of minor-unit digits for every supported currency.
const Exponent = 2

var (
	ErrInvalid   = errors.New("money: invalid amount")
	ErrNegative  = errors.New("money: amount must not be negative")
	ErrPrecision = errors.New("money: too many decimal places")
	ErrOverflow  = errors.New("money: amount overflows")
)

// Parse reads a decimal string such as "10.00" into minor units.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromDecimal(d)
}

// FromDecimal converts d to minor units, rejecting fractions of a minor unit.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	scaled := d.Shift(Exponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrPrecision
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrOverflow
	}
	return scaled.IntPart(), nil
}

// Decimal returns minor as a decimal in major units.
func Decimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -Exponent)
}

// Format renders minor units as a fixed two-decimal string.
func Format(minor int64) string {
	return Decimal(minor).StringFixed(Exponent)
}

// LineTotal multiplies a unit price by a quantity, failing on overflow.
func LineTotal(unit int64, quantity int) (int64, error) {
	if unit < 0 {
		return 0, ErrNegative
	}
	if quantity < 0 {
		return 0, ErrInvalid
	}
	if quantity != 0 && unit > math.MaxInt64/int64(quantity) {
		return 0, ErrOverflow
	}
	return unit * int64(quantity), nil
}

// Sum adds amounts, failing on overflow.
func Sum(amounts ...int64) (int64, error) {
	var total int64
	for _, a := range amounts {
		if a > 0 && total > math.MaxInt64-a {
			return 0, ErrOverflow
		}
		total += a
	}
	return total, nil
}
