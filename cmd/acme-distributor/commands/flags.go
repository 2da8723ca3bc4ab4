package commands

import (
	"github.com/spf13/cobra"

	"github.com/chronicc/acme-distributor/cmd/acme-distributor/handlers"
	"github.com/chronicc/acme-distributor/internal/config"
)

// storeFlags are the flags shared by every command that reads a store.
type storeFlags struct {
	configPath string
	store      string
	domain     string
	resolver   string
	certDir    string
}

func (f *storeFlags) register(cmd *cobra.Command, withDomain, withCertDir bool) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file (default: "+config.DefaultFile+" when present)")
	cmd.Flags().StringVarP(&f.store, "store", "s", "", "Certificate store: path to acme.json or s3://bucket/key")
	cmd.Flags().StringVar(&f.resolver, "resolver", "", "Only consider records of this certificate resolver")
	if withDomain {
		cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "Domain whose certificate is used")
	}
	if withCertDir {
		cmd.Flags().StringVar(&f.certDir, "cert-dir", "", "Local certificate directory (default: "+config.DefaultCertDir+")")
	}
}

// apply copies the flags the user set onto cfg.
func (f *storeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("store") {
		cfg.Store = f.store
	}
	if changed("domain") {
		cfg.Domain = f.domain
	}
	if changed("resolver") {
		cfg.Resolver = f.resolver
	}
	if changed("cert-dir") {
		cfg.CertDir = f.certDir
	}
}

func (f *storeFlags) options(cmd *cobra.Command, override func(*config.Config) error) handlers.Options {
	return handlers.Options{
		ConfigPath: f.configPath,
		LogLevel:   logLevel(cmd),
		Override:   override,
	}
}

// logLevel returns the persistent --log-level value, or "" when the command
// runs outside the root command.
func logLevel(cmd *cobra.Command) string {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return ""
	}
	return level
}
