package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductValidates(t *testing.T) {
	_, err := NewProduct("", "Mug", 100, 1)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = NewProduct("p1", "Mug", -1, 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewProduct("p1", "Mug", 100, -1)
	assert.ErrorIs(t, err, ErrInvalidStock)

	p, err := NewProduct("p1", "Mug", 100, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestCheckAvailable(t *testing.T) {
	p := &Product{ID: "p1", Stock: 2}

	require.NoError(t, p.CheckAvailable(2))
	assert.ErrorIs(t, p.CheckAvailable(0), ErrInvalidQuantity)

	err := p.CheckAvailable(3)
	require.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
}
