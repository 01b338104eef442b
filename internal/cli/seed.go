package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/application/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

func seedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products from a YAML catalog file",
		Long: `Upsert every product listed in a YAML file into the configured store.

Example file:

  products:
    - id: mug
      name: Coffee mug
      price: "10.00"
      stock: 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()

			st, err := openStores(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.close(context.Background()) }()
			if st.migrate != nil {
				if err := st.migrate(cmd.Context()); err != nil {
					return err
				}
			}

			n, err := appcatalog.NewService(st.catalog, observability.Nop()).Seed(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
