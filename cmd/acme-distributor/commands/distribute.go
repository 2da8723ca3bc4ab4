package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronicc/acme-distributor/cmd/acme-distributor/handlers"
	"github.com/chronicc/acme-distributor/internal/config"
)

// Distribute returns the distribute command.
//
// The distribute command resolves the certificate for a domain, stages it
// into the certificate directory and uploads every file of that directory
// to each target host.
func Distribute() *cobra.Command {
	var (
		sf             storeFlags
		hosts          []string
		hostsFile      string
		hcloudSelector string
		user           string
		identityFile   string
		port           int
		remoteDir      string
		hostKeyPolicy  string
		knownHosts     string
		concurrency    int
		timeout        time.Duration
		retries        int
		postCommand    string
		verify         bool
		jsonOutput     bool
		metricsFile    string
		yes            bool
	)

	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Distribute a certificate to a fleet of hosts",
		Long: `Distribute resolves the certificate and key for a domain from the
certificate store, stages them into the local certificate directory and
uploads every file of that directory to each target host over SFTP.

Targets are collected from --host, --hosts-file, the configuration file and
Hetzner Cloud servers matching --hcloud-selector (requires HCLOUD_TOKEN).

A failing host never stops the others. The command exits non-zero when any
host failed.

Example:
  acme-distributor distribute -s acme.json -d example.com --host web1 --host deploy@web2:2222`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) error {
				sf.apply(cmd, cfg)

				changed := cmd.Flags().Changed
				if changed("host") {
					parsed := make([]config.Host, 0, len(hosts))
					for _, h := range hosts {
						host, err := config.ParseHost(h)
						if err != nil {
							return fmt.Errorf("invalid --host: %w", err)
						}
						parsed = append(parsed, host)
					}
					cfg.Hosts = parsed
				}
				if changed("hcloud-selector") {
					cfg.HCloud.LabelSelector = hcloudSelector
				}
				if changed("user") {
					cfg.User = user
				}
				if changed("identity-file") {
					cfg.IdentityFile = identityFile
				}
				if changed("port") {
					cfg.Port = port
				}
				if changed("remote-dir") {
					cfg.RemoteDir = remoteDir
				}
				if changed("host-key-policy") {
					cfg.HostKeyPolicy = hostKeyPolicy
				}
				if changed("known-hosts") {
					cfg.KnownHostsFile = knownHosts
				}
				if changed("concurrency") {
					cfg.Concurrency = concurrency
				}
				if changed("timeout") {
					cfg.ConnectTimeout = timeout
				}
				if changed("retries") {
					cfg.ConnectRetries = retries
				}
				if changed("post-command") {
					cfg.PostCommand = postCommand
				}
				if changed("verify") {
					cfg.Verify = verify
				}
				return nil
			}

			return handlers.Distribute(cmd.Context(), handlers.DistributeOptions{
				Options:     sf.options(cmd, override),
				HostsFile:   hostsFile,
				JSON:        jsonOutput,
				MetricsFile: metricsFile,
				Yes:         yes,
			})
		},
	}

	sf.register(cmd, true, true)

	cmd.Flags().StringArrayVar(&hosts, "host", nil, "Target host as [user@]host[:port] (repeatable, replaces hosts from the config file)")
	cmd.Flags().StringVar(&hostsFile, "hosts-file", "", "File with one [user@]host[:port] per line")
	cmd.Flags().StringVar(&hcloudSelector, "hcloud-selector", "", "Hetzner Cloud label selector for target discovery")
	cmd.Flags().StringVarP(&user, "user", "u", "", "Default SSH user (default: "+config.DefaultUser+")")
	cmd.Flags().StringVarP(&identityFile, "identity-file", "i", "", "SSH private key (default: ssh-agent via SSH_AUTH_SOCK)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Default SSH port (default: 22)")
	cmd.Flags().StringVar(&remoteDir, "remote-dir", "", "Remote directory (default: "+config.DefaultRemoteDir+")")
	cmd.Flags().StringVar(&hostKeyPolicy, "host-key-policy", "", "Host key policy: known-hosts, accept-new or insecure (default: known-hosts)")
	cmd.Flags().StringVar(&knownHosts, "known-hosts", "", "known_hosts file (default: ~/.ssh/known_hosts)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Hosts handled in parallel (default: 4, 1 is sequential)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "SSH connect timeout (default: $ACMEDIST_CONNECT_TIMEOUT or 30s)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Connection retries per host (default: $ACMEDIST_CONNECT_RETRIES or 0)")
	cmd.Flags().StringVar(&postCommand, "post-command", "", "Command run on each host after upload, e.g. update-ca-certificates")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify remote file sizes after upload")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
