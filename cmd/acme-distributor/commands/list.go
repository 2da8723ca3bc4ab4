package commands

import (
	"github.com/spf13/cobra"

	"github.com/chronicc/acme-distributor/cmd/acme-distributor/handlers"
	"github.com/chronicc/acme-distributor/internal/config"
)

// List returns the list command.
func List() *cobra.Command {
	var sf storeFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the certificates in a store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) error {
				sf.apply(cmd, cfg)
				return nil
			}
			return handlers.List(cmd.Context(), sf.options(cmd, override), jsonOutput)
		},
	}

	sf.register(cmd, false, false)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
