package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperr"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

const (
	catalogService = "catalog-service"
	useCaseList    = "catalog.list"
	useCaseGet     = "catalog.get"
	useCaseSeed    = "catalog.seed"
)

type Service struct {
	repo domain.Repository
	in   application.Instrumentation
}

func NewService(repo domain.Repository, tel observability.Observability) *Service {
	return &Service{repo: repo, in: application.NewInstrumentation(tel, catalogService)}
}

// List returns every product ordered by id.
func (s *Service) List(ctx context.Context) (_ []*domain.Product, err error) {
	ctx, run := s.in.Start(ctx, useCaseList, "ListProducts")
	defer func() { run.End(err) }()

	products, err := s.repo.List(ctx)
	if err != nil {
		run.Fail("CATALOG_READ_FAILED")
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	run.With(observability.F("products", len(products)))
	return products, nil
}

func (s *Service) Get(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, run := s.in.Start(ctx, useCaseGet, "GetProduct", attribute.String("product.id", id))
	defer func() { run.End(err) }()

	if strings.TrimSpace(id) == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, apperr.Validation("product id is required")
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("PRODUCT_NOT_FOUND")
			return nil, apperr.Wrap(apperr.ErrNotFound, err)
		}
		run.Fail("CATALOG_READ_FAILED")
		return nil, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	return p, nil
}

// SeedFile is the YAML layout read by Seed. Prices are decimal strings in major units.
//
//	products:
//	  - id: P-100
//	    name: Notebook
//	    price: "10.00"
//	    stock: 25
type SeedFile struct {
	Products []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

// Seed upserts every product in the YAML document read from r.
// The whole file is validated before anything is written.
func (s *Service) Seed(ctx context.Context, r io.Reader) (_ int, err error) {
	ctx, run := s.in.Start(ctx, useCaseSeed, "SeedCatalog")
	defer func() { run.End(err) }()

	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		run.Fail("SEED_DECODE_FAILED")
		return 0, apperr.Wrap(apperr.ErrValidation, fmt.Errorf("catalog: decode seed: %w", err))
	}

	seen := make(map[string]bool, len(file.Products))
	products := make([]*domain.Product, 0, len(file.Products))
	for i, sp := range file.Products {
		price, err := money.Parse(sp.Price)
		if err != nil {
			run.Fail("SEED_INVALID")
			return 0, apperr.Wrap(apperr.ErrValidation, fmt.Errorf("catalog: product %d (%s) price: %w", i, sp.ID, err))
		}
		p, err := domain.NewProduct(sp.ID, sp.Name, price, sp.Stock)
		if err != nil {
			run.Fail("SEED_INVALID")
			return 0, apperr.Wrap(apperr.ErrValidation, fmt.Errorf("catalog: product %d (%s): %w", i, sp.ID, err))
		}
		if seen[p.ID] {
			run.Fail("SEED_DUPLICATE")
			return 0, apperr.Validation(fmt.Sprintf("catalog: product %s listed twice", p.ID))
		}
		seen[p.ID] = true
		products = append(products, p)
	}

	for _, p := range products {
		if err := s.repo.Upsert(ctx, p); err != nil {
			run.Fail("SEED_WRITE_FAILED")
			return 0, fmt.Errorf("catalog: upsert %s: %w", p.ID, err)
		}
	}
	run.With(observability.F("products", len(products)))
	return len(products), nil
}
