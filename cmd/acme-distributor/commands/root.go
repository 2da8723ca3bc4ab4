// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the acme-distributor CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "acme-distributor",
		Short:         "Distribute issued ACME certificates to a fleet of hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: $ACMEDIST_LOG_LEVEL or info)")

	cmd.AddCommand(Distribute())
	cmd.AddCommand(Resolve())
	cmd.AddCommand(Export())
	cmd.AddCommand(List())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
