package commands

import (
	"github.com/spf13/cobra"

	"github.com/chronicc/acme-distributor/cmd/acme-distributor/handlers"
	"github.com/chronicc/acme-distributor/internal/config"
)

// Export returns the export command.
func Export() *cobra.Command {
	var sf storeFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the certificate and key for a domain to the certificate directory",
		Long: `Export resolves a domain and writes <domain>.crt (0644) and
<domain>.key (0600) into the certificate directory, creating it when
missing. This is the staging step distribute runs before uploading.

Example:
  acme-distributor export -s acme.json -d example.com --cert-dir ./certs`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) error {
				sf.apply(cmd, cfg)
				return nil
			}
			return handlers.Export(cmd.Context(), sf.options(cmd, override))
		},
	}

	sf.register(cmd, true, true)

	return cmd
}
