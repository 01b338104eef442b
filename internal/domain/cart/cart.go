package cart

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrEmpty           = errors.New("cart: no line items")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrInvalidProduct  = errors.New("cart: product id is required")
	ErrItemNotFound    = errors.New("cart: product not in cart")
)

type Item struct {
	ProductID string
	Quantity  int
}

// Cart is a user's mutable basket. Prices are not stored; totals are derived on read.
type Cart struct {
	UserID    string
	Items     []Item
	UpdatedAt time.Time
}

func New(userID string) *Cart {
	return &Cart{UserID: userID}
}

// Add merges quantity into an existing line or appends a new one.
func (c *Cart) Add(productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
	c.touch()
	return nil
}

func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Remove(productID string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Clear() {
	c.Items = nil
	c.touch()
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]Item(nil), c.Items...)
	return &out
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

type Repository interface {
	// Get returns an empty cart when the user has none yet.
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	// Clear empties the cart but keeps the document.
	Clear(ctx context.Context, userID string) error
}
