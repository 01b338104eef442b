package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	cartService     = "cart-service"
	useCaseGet      = "cart.get"
	useCaseAdd      = "cart.add_item"
	useCaseSet      = "cart.set_quantity"
	useCaseRemove   = "cart.remove_item"
	defaultCurrency = "usd"
)

// Line is a cart item priced from the live catalog at read time.
type Line struct {
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	LineTotal int64
	// Available is false when the product left the catalog or has less stock than Quantity.
	Available bool
}

type View struct {
	UserID    string
	Lines     []Line
	Total     int64
	Currency  string
	UpdatedAt time.Time
}

type Service struct {
	carts    domain.Repository
	catalog  catalog.Repository
	currency string
	in       application.Instrumentation
}

func NewService(carts domain.Repository, products catalog.Repository, currency string, tel observability.Observability) *Service {
	if currency == "" {
		currency = defaultCurrency
	}
	return &Service{
		carts:    carts,
		catalog:  products,
		currency: currency,
		in:       application.NewInstrumentation(tel, cartService),
	}
}

// Get returns the cart with a total derived from current catalog prices.
func (s *Service) Get(ctx context.Context, userID string) (_ *View, err error) {
	ctx, run := s.in.Start(ctx, useCaseGet, "GetCart")
	defer func() { run.End(err) }()

	if strings.TrimSpace(userID) == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, apperr.Validation("user id is required")
	}
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	v, err := s.view(ctx, c)
	if err != nil {
		run.Fail("PRICING_FAILED")
		return nil, err
	}
	return v, nil
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (_ *View, err error) {
	ctx, run := s.in.Start(ctx, useCaseAdd, "AddCartItem", attribute.String("product.id", productID))
	defer func() { run.End(err) }()

	return s.mutate(ctx, run, userID, productID, func(c *domain.Cart) error {
		if err := c.Add(productID, quantity); err != nil {
			return err
		}
		return s.checkStock(ctx, c, productID)
	})
}

// SetQuantity replaces the quantity of an item already in the cart.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (_ *View, err error) {
	ctx, run := s.in.Start(ctx, useCaseSet, "SetCartQuantity", attribute.String("product.id", productID))
	defer func() { run.End(err) }()

	return s.mutate(ctx, run, userID, productID, func(c *domain.Cart) error {
		if err := c.SetQuantity(productID, quantity); err != nil {
			return err
		}
		return s.checkStock(ctx, c, productID)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (_ *View, err error) {
	ctx, run := s.in.Start(ctx, useCaseRemove, "RemoveCartItem", attribute.String("product.id", productID))
	defer func() { run.End(err) }()

	return s.mutate(ctx, run, userID, productID, func(c *domain.Cart) error {
		return c.Remove(productID)
	})
}

func (s *Service) mutate(ctx context.Context, run *application.Run, userID, productID string, fn func(c *domain.Cart) error) (*View, error) {
	if strings.TrimSpace(userID) == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, apperr.Validation("user id is required")
	}
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	if err := fn(c); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidProduct):
			run.Fail("ITEM_INVALID")
			return nil, apperr.Wrap(apperr.ErrValidation, err)
		case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, catalog.ErrNotFound):
			run.Fail("ITEM_NOT_FOUND")
			return nil, apperr.Wrap(apperr.ErrNotFound, err)
		case errors.Is(err, catalog.ErrInsufficientStock):
			run.Fail("INSUFFICIENT_STOCK")
			return nil, apperr.Wrap(apperr.ErrConflict, err)
		default:
			run.Fail("CATALOG_READ_FAILED")
			return nil, err
		}
	}
	if err := s.carts.Save(ctx, c); err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	run.With(observability.F("items", len(c.Items)))
	v, err := s.view(ctx, c)
	if err != nil {
		run.Fail("PRICING_FAILED")
		return nil, err
	}
	return v, nil
}

// checkStock is advisory; stock is only reserved at checkout.
func (s *Service) checkStock(ctx context.Context, c *domain.Cart, productID string) error {
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return err
	}
	for _, it := range c.Items {
		if it.ProductID == productID {
			return p.CheckAvailable(it.Quantity)
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, c *domain.Cart) (*View, error) {
	v := &View{UserID: c.UserID, Currency: s.currency, UpdatedAt: c.UpdatedAt, Lines: make([]Line, 0, len(c.Items))}
	totals := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		line := Line{ProductID: it.ProductID, Quantity: it.Quantity}
		p, err := s.catalog.Get(ctx, it.ProductID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			v.Lines = append(v.Lines, line)
			continue
		case err != nil:
			return nil, fmt.Errorf("cart: price %s: %w", it.ProductID, err)
		}
		line.Name, line.UnitPrice = p.Name, p.Price
		line.Available = p.Stock >= it.Quantity
		if line.LineTotal, err = money.LineTotal(p.Price, it.Quantity); err != nil {
			return nil, fmt.Errorf("cart: price %s: %w", it.ProductID, err)
		}
		totals = append(totals, line.LineTotal)
		v.Lines = append(v.Lines, line)
	}
	total, err := money.Sum(totals...)
	if err != nil {
		return nil, fmt.Errorf("cart: total: %w", err)
	}
	v.Total = total
	return v, nil
}
