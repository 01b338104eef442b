package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/application/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/notification"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/notify"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
)

const rateLimiterIdle = 10 * time.Minute

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook receiver and expiry sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	t, err := newTelemetry(cfg)
	if err != nil {
		return err
	}
	defer t.sync()
	log := t.tel.Logger()

	st, err := openStores(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			log.Warn("store_close_failed", observability.F("error", err))
		}
	}()
	if st.migrate != nil {
		if err := st.migrate(ctx); err != nil {
			return err
		}
	}

	processor, sim, err := newProcessor(cfg.Payments)
	if err != nil {
		return err
	}

	bus := outbox.NewBus(log,
		outbox.WithQueueSize(cfg.Outbox.QueueSize),
		outbox.WithConcurrency(cfg.Outbox.Concurrency),
		outbox.WithHandlerTimeout(cfg.Outbox.HandlerTimeout),
	)
	publisher := outbox.Fanout{bus}
	if brokers := outbox.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		kp := outbox.NewKafkaPublisher(outbox.NewKafkaWriter(brokers, cfg.Kafka.Topic))
		defer func() { _ = kp.Close() }()
		publisher = append(publisher, kp)
		log.Info("kafka_relay_enabled", observability.F("topic", cfg.Kafka.Topic))
	}

	var notifier notification.Notifier = notify.NewLogNotifier(log)
	if cfg.SMTP.Addr != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	workerpresentation.NewNotifications(notification.New(notifier, t.tel), log).Start(bus)

	bus.Start(ctx)
	defer bus.Stop(context.Background())

	services, sweeper := buildServices(cfg, st, processor, publisher, t.tel)
	services.Metrics = promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
	if sim != nil {
		services.Simulator = sim
	}

	go sweeper.Run(ctx, cfg.Sweep.Interval)

	limiter := httppresentation.NewIPRateLimiter(cfg.HTTP.CheckoutRate, cfg.HTTP.CheckoutBurst)
	go limiter.Run(ctx, time.Minute, rateLimiterIdle)

	handler := httppresentation.NewHandler(services,
		httppresentation.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TrustUserHeader),
		limiter, t.tel)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store", cfg.Store.Driver),
			observability.F("payments", cfg.Payments.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("http_server_error", observability.F("error", err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_error", observability.F("error", err))
		return err
	}
	log.Info("http_server_stopped")
	return nil
}

// buildServices wires every use case over st. The sweeper shares the reconcile dependencies.
func buildServices(
	cfg *config.Config,
	st *stores,
	processor payment.Processor,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) (httppresentation.Services, *reconcile.Sweeper) {
	rdeps := reconcile.Deps{
		Catalog:   st.catalog,
		Orders:    st.orders,
		Payments:  st.payments,
		Processor: processor,
		UoW:       st.uow,
		Publisher: publisher,
		Tel:       tel,
	}
	odeps := apporder.Deps{
		Catalog:   st.catalog,
		Orders:    st.orders,
		Payments:  st.payments,
		Processor: processor,
		UoW:       st.uow,
		Publisher: publisher,
		Tel:       tel,
	}
	services := httppresentation.Services{
		Checkout: checkout.New(checkout.Deps{
			Catalog:    st.catalog,
			Carts:      st.carts,
			Orders:     st.orders,
			Payments:   st.payments,
			Processor:  processor,
			UoW:        st.uow,
			IDs:        id.NewUUIDGenerator(),
			Publisher:  publisher,
			Tel:        tel,
			Currency:   cfg.Payments.Currency,
			PaymentTTL: cfg.Payments.AttemptTTL,
		}),
		Reconcile: reconcile.NewHandler(rdeps),
		GetOrder:  apporder.NewGetUseCase(odeps),
		Cancel:    apporder.NewCancelUseCase(odeps),
		Shipping:  apporder.NewShippingUseCase(odeps),
		Lookup:    apppayment.NewLookupUseCase(st.payments, processor, tel),
		Cart:      appcart.NewService(st.carts, st.catalog, cfg.Payments.Currency, tel),
		Catalog:   appcatalog.NewService(st.catalog, tel),
		Currency:  cfg.Payments.Currency,
	}
	sweeper := reconcile.NewSweeper(rdeps, reconcile.SweepConfig{
		Batch:       cfg.Sweep.Batch,
		OrphanAfter: cfg.Sweep.OrphanAfter,
	})
	return services, sweeper
}
