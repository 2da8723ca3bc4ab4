package commands

import (
	"github.com/spf13/cobra"

	"github.com/chronicc/acme-distributor/cmd/acme-distributor/handlers"
	"github.com/chronicc/acme-distributor/internal/config"
)

// Resolve returns the resolve command.
func Resolve() *cobra.Command {
	var sf storeFlags
	var raw bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the certificate and key for a domain",
		Long: `Resolve looks up a domain in the certificate store and prints its
certificate followed by its private key.

Traefik stores both base64 encoded; they are decoded to PEM unless --raw
is given, in which case the stored values are printed unchanged.

Example:
  acme-distributor resolve -s acme.json -d example.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) error {
				sf.apply(cmd, cfg)
				return nil
			}
			return handlers.Resolve(cmd.Context(), sf.options(cmd, override), raw)
		},
	}

	sf.register(cmd, true, false)
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored values without decoding")

	return cmd
}
