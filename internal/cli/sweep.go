package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
)

func sweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry sweep over pending payment attempts and orphaned orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			t, err := newTelemetry(cfg)
			if err != nil {
				return err
			}
			defer t.sync()

			st, err := openStores(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.close(context.Background()) }()

			processor, _, err := newProcessor(cfg.Payments)
			if err != nil {
				return err
			}

			var publisher outbox.Fanout
			if brokers := outbox.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
				kp := outbox.NewKafkaPublisher(outbox.NewKafkaWriter(brokers, cfg.Kafka.Topic))
				defer func() { _ = kp.Close() }()
				publisher = append(publisher, kp)
			}

			sweeper := reconcile.NewSweeper(reconcile.Deps{
				Catalog:   st.catalog,
				Orders:    st.orders,
				Payments:  st.payments,
				Processor: processor,
				UoW:       st.uow,
				Publisher: publisher,
				Tel:       t.tel,
			}, reconcile.SweepConfig{
				Batch:       cfg.Sweep.Batch,
				OrphanAfter: cfg.Sweep.OrphanAfter,
			})
			report, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d paid=%d skipped=%d orphans=%d errors=%d\n",
				report.Expired, report.Paid, report.Skipped, report.Orphans, report.Errors)
			return nil
		},
	}
}
