package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chronicc/acme-distributor/internal/config"
	"github.com/chronicc/acme-distributor/internal/fleet"
	"github.com/chronicc/acme-distributor/internal/platform/hcloud"
)

// collectTargets merges the configured hosts, the hosts file and the servers
// discovered in Hetzner Cloud, in that order. Duplicates keep their first
// position.
func collectTargets(ctx context.Context, cfg *config.Config, hostsFile string, log zerolog.Logger) ([]fleet.Target, error) {
	hosts := append([]config.Host(nil), cfg.Hosts...)

	if hostsFile != "" {
		fileHosts, err := config.ReadHostsFile(hostsFile)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, fileHosts...)
	}

	if cfg.HCloud.LabelSelector != "" {
		discovered, err := discoverHosts(ctx, cfg.HCloud, log)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, discovered...)
	}

	targets := cfg.Targets(hosts)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: use --host, --hosts-file, --hcloud-selector or the hosts list of the config file", ErrNoTargets)
	}
	return targets, nil
}

func discoverHosts(ctx context.Context, cfg config.HCloudConfig, log zerolog.Logger) ([]config.Host, error) {
	token := strings.TrimSpace(os.Getenv("HCLOUD_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("HCLOUD_TOKEN environment variable is required for label selector discovery")
	}

	servers, err := newDiscoverer(token).DiscoverServers(ctx, cfg.LabelSelector)
	switch {
	case err == nil:
	case hcloud.IsUnauthorized(err):
		return nil, fmt.Errorf("failed to discover servers: HCLOUD_TOKEN was rejected by the Hetzner Cloud API: %w", err)
	case hcloud.IsRateLimited(err):
		return nil, fmt.Errorf("failed to discover servers: Hetzner Cloud API rate limit exceeded, try again later: %w", err)
	default:
		return nil, fmt.Errorf("failed to discover servers: %w", err)
	}

	network := hcloud.Network(cfg.Network)
	hosts := make([]config.Host, 0, len(servers))
	for _, s := range servers {
		addr := s.Address(network)
		if addr == "" {
			log.Warn().Str("server", s.Name).Str("network", cfg.Network).Msg("Skipping server without address")
			continue
		}
		hosts = append(hosts, config.Host{Host: addr})
	}

	log.Info().
		Str("selector", cfg.LabelSelector).
		Int("servers", len(hosts)).
		Msg("Discovered servers")
	return hosts, nil
}
