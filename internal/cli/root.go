// Package cli holds the minishop command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
)

var Version = "dev"

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "minishop",
		Short:         "Minishop checkout and payment reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file; MINISHOP_* env vars override it")

	root.AddCommand(serveCmd(opts))
	root.AddCommand(migrateCmd(opts))
	root.AddCommand(sweepCmd(opts))
	root.AddCommand(seedCmd(opts))
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
