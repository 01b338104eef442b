package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `
products:
  - id: P-2
    name: Pen
    price: "1.50"
    stock: 100
  - id: P-1
    name: Notebook
    price: "10.00"
    stock: 25
`

func TestSeedThenList(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore().Catalog(), nil)

	n, err := svc.Seed(ctx, strings.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	products, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P-1", products[0].ID)
	assert.Equal(t, int64(1000), products[0].Price)
	assert.Equal(t, int64(150), products[1].Price)

	p, err := svc.Get(ctx, "P-2")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Stock)
}

func TestGetMissingProduct(t *testing.T) {
	svc := NewService(memory.NewStore().Catalog(), nil)

	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSeedRejectsBadFilesWithoutWriting(t *testing.T) {
	cases := map[string]string{
		"sub-cent price": "products:\n  - {id: A, name: A, price: \"1.001\", stock: 1}\n",
		"negative stock": "products:\n  - {id: A, name: A, price: \"1.00\", stock: -1}\n",
		"duplicate id":   "products:\n  - {id: A, name: A, price: \"1.00\", stock: 1}\n  - {id: A, name: B, price: \"2.00\", stock: 1}\n",
		"unknown field":  "products:\n  - {id: A, name: A, price: \"1.00\", stock: 1, colour: red}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(memory.NewStore().Catalog(), nil)

			_, err := svc.Seed(ctx, strings.NewReader(doc))
			require.ErrorIs(t, err, apperr.ErrValidation)

			products, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, products)
		})
	}
}
