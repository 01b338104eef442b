package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, constraints and indexes for the configured store",
		Long: `Create the schema the configured store needs.

postgres applies the embedded schema; mongodb creates the unique and query indexes.
The memory driver needs nothing. Running it twice is safe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.close(context.Background()) }()

			if st.migrate == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s store needs no migration\n", cfg.Store.Driver)
				return nil
			}
			if err := st.migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate %s: %w", cfg.Store.Driver, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store migrated\n", cfg.Store.Driver)
			return nil
		},
	}
}
