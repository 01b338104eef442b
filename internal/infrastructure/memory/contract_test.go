package memory

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/storetest"
)

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Stores {
		s := NewStore()
		return storetest.Stores{
			Catalog:  s.Catalog(),
			Carts:    s.Carts(),
			Orders:   s.Orders(),
			Payments: s.Payments(),
			UoW:      s.UnitOfWork(),
		}
	})
}
