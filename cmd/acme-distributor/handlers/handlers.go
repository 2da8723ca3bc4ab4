// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/chronicc/acme-distributor/internal/config"
	"github.com/chronicc/acme-distributor/internal/fleet"
	"github.com/chronicc/acme-distributor/internal/logging"
	"github.com/chronicc/acme-distributor/internal/platform/hcloud"
	"github.com/chronicc/acme-distributor/internal/platform/s3"
	"github.com/chronicc/acme-distributor/internal/store"
)

var (
	// ErrHostsFailed is returned by Distribute when at least one host failed.
	ErrHostsFailed = errors.New("distribution failed on one or more hosts")

	// ErrNoTargets is returned when no target host was configured or discovered.
	ErrNoTargets = errors.New("no target hosts")

	// ErrAborted is returned when the user declines the confirmation prompt.
	ErrAborted = errors.New("aborted by user")
)

// Options are shared by every handler.
type Options struct {
	// ConfigPath is the configuration file; empty uses config.DefaultFile
	// when it exists.
	ConfigPath string
	LogLevel   string

	// Override applies command-line flags on top of the file configuration.
	Override func(*config.Config) error
}

// transport is the fleet transport the distribute handler drives.
type transport interface {
	fleet.Transport
	Close() error
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads the configuration file.
	loadConfigFile = config.Load

	// newObjectStore creates the S3 client used for s3:// stores.
	newObjectStore = func(ctx context.Context, cfg config.S3Config) (store.ObjectGetter, error) {
		return s3.NewClient(ctx, s3.Options{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PathStyle: cfg.PathStyle,
		})
	}

	// newDiscoverer creates the Hetzner Cloud client used for target discovery.
	newDiscoverer = func(token string) hcloud.Discoverer {
		return hcloud.NewRealClient(token)
	}

	// newTransport creates the SSH transport.
	newTransport = func(cfg fleet.SSHConfig) transport {
		return fleet.NewSSHTransport(cfg)
	}

	// confirmDistribution asks before touching the fleet.
	confirmDistribution = confirmPrompt

	// interactive reports whether stdout is a terminal.
	interactive = isInteractiveTTY

	// setupLogger creates the stderr logger.
	setupLogger = logging.Setup
)

// loadConfig loads the configuration file, applies flag overrides and
// defaults, and validates the result.
func loadConfig(opts Options) (*config.Config, error) {
	cfg, err := loadBaseConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadBaseConfig is loadConfig without validation.
func loadBaseConfig(opts Options) (*config.Config, error) {
	cfg, err := loadConfigFile(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Override != nil {
		if err := opts.Override(cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// loadBundle reads the store from a local file or object storage.
func loadBundle(ctx context.Context, cfg *config.Config) (*store.Bundle, error) {
	if !store.IsObjectRef(cfg.Store) {
		return store.Load(cfg.Store)
	}

	objects, err := newObjectStore(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return store.LoadSource(ctx, cfg.Store, objects)
}

// resolveMaterial loads the store and resolves the configured domain.
func resolveMaterial(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store.Material, error) {
	bundle, err := loadBundle(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var material *store.Material
	if cfg.Resolver != "" {
		if err := checkResolver(bundle, cfg.Resolver); err != nil {
			return nil, err
		}
		material, err = bundle.ResolveIn(cfg.Resolver, cfg.Domain)
	} else {
		material, err = bundle.Resolve(cfg.Domain)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("store", bundle.Source).
		Str("domain", material.Domain).
		Str("resolver", material.Resolver).
		Msg("Resolved certificate")
	return material, nil
}

// checkResolver fails when name is not one of the bundle's resolvers. Flat
// stores have a single unnamed resolver.
func checkResolver(bundle *store.Bundle, name string) error {
	resolvers := bundle.Resolvers()
	if slices.Contains(resolvers, name) {
		return nil
	}

	available := make([]string, 0, len(resolvers))
	for _, r := range resolvers {
		if r == "" {
			r = "(unnamed)"
		}
		available = append(available, r)
	}
	if len(available) == 0 {
		return fmt.Errorf("%w: %q (store is empty)", store.ErrResolverNotFound, name)
	}
	return fmt.Errorf("%w: %q (available: %s)", store.ErrResolverNotFound, name, strings.Join(available, ", "))
}

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
