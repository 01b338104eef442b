package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/mongodb"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paysim"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/stripe"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
)

const metricsNamespace = "minishop"

// telemetry is the process-wide logger, tracer and metric registry.
type telemetry struct {
	base     *zap.Logger
	tel      observability.Observability
	registry *prometheus.Registry
}

func newTelemetry(cfg *config.Config) (*telemetry, error) {
	base, err := logging.NewLogger(logging.Options{
		Service: cfg.Service.Name,
		Env:     cfg.Service.Env,
		Level:   cfg.Service.LogLevel,
		File:    cfg.Service.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	zap.ReplaceGlobals(base)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := infraobs.Register(prometrics.New(metricsNamespace, "", reg))

	system := logging.WithTrace(base, logging.SystemTraceID, logging.SystemSpanID)
	tel := infraobs.New(oteltrace.New(cfg.Service.Name), zaplogger.New(system), counters, histograms)
	return &telemetry{base: base, tel: tel, registry: reg}, nil
}

func (t *telemetry) sync() { _ = t.base.Sync() }

// stores bundles the repositories of whichever driver is configured.
type stores struct {
	catalog  catalog.Repository
	carts    cart.Repository
	orders   order.Repository
	payments payment.Repository
	uow      application.UnitOfWork

	// migrate creates tables or indexes; nil for drivers that need none.
	migrate func(ctx context.Context) error
	close   func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg config.StoreConfig) (*stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		s := memory.NewStore()
		return &stores{
			catalog:  s.Catalog(),
			carts:    s.Carts(),
			orders:   s.Orders(),
			payments: s.Payments(),
			uow:      s.UnitOfWork(),
			close:    func(context.Context) error { return nil },
		}, nil
	case config.DriverMongoDB:
		s, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &stores{
			catalog:  s.Catalog(),
			carts:    s.Carts(),
			orders:   s.Orders(),
			payments: s.Payments(),
			uow:      s.UnitOfWork(),
			migrate:  s.EnsureIndexes,
			close:    s.Close,
		}, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &stores{
			catalog:  s.Catalog(),
			carts:    s.Carts(),
			orders:   s.Orders(),
			payments: s.Payments(),
			uow:      s.UnitOfWork(),
			migrate:  s.Migrate,
			close: func(context.Context) error {
				s.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newProcessor returns the configured processor and, for the simulator, the simulator itself.
func newProcessor(cfg config.PaymentsConfig) (payment.Processor, *paysim.Simulator, error) {
	switch cfg.Provider {
	case config.ProviderStripe:
		p, err := stripe.New(stripe.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Tolerance:     cfg.SignatureTolerance,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case config.ProviderSimulator:
		sim := paysim.New(cfg.SimWebhookSecret, cfg.SimSuccessRate)
		return sim, sim, nil
	}
	return nil, nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
}
