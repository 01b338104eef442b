package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMergesLines(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.Add("p1", 1))
	require.NoError(t, c.Add("p2", 2))
	require.NoError(t, c.Add("p1", 3))

	assert.Equal(t, []Item{{ProductID: "p1", Quantity: 4}, {ProductID: "p2", Quantity: 2}}, c.Items)
}

func TestAddRejectsBadInput(t *testing.T) {
	c := New("u1")
	assert.ErrorIs(t, c.Add("", 1), ErrInvalidProduct)
	assert.ErrorIs(t, c.Add("p1", 0), ErrInvalidQuantity)
	assert.True(t, c.IsEmpty())
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.Add("p1", 1))

	require.NoError(t, c.SetQuantity("p1", 5))
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.ErrorIs(t, c.SetQuantity("p9", 1), ErrItemNotFound)
	assert.ErrorIs(t, c.SetQuantity("p1", 0), ErrInvalidQuantity)

	require.NoError(t, c.Remove("p1"))
	assert.True(t, c.IsEmpty())
	assert.ErrorIs(t, c.Remove("p1"), ErrItemNotFound)
}

func TestCloneIsIndependent(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.Add("p1", 1))

	cp := c.Clone()
	cp.Items[0].Quantity = 9

	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestClearKeepsOwner(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.Add("p1", 1))
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "u1", c.UserID)
}
