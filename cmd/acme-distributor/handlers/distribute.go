package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gossh "golang.org/x/crypto/ssh"

	"github.com/chronicc/acme-distributor/internal/config"
	"github.com/chronicc/acme-distributor/internal/fleet"
	"github.com/chronicc/acme-distributor/internal/metrics"
	"github.com/chronicc/acme-distributor/internal/platform/ssh"
	"github.com/chronicc/acme-distributor/internal/store"
)

// DistributeOptions configures Distribute.
type DistributeOptions struct {
	Options

	// HostsFile adds one [user@]host[:port] per line to the targets.
	HostsFile string

	JSON        bool
	MetricsFile string

	// Yes skips the confirmation prompt.
	Yes bool
}

// Distribute handles the distribute command.
//
// The store is loaded and the domain resolved once; store errors abort
// before any host is contacted. The material is staged into the certificate
// directory, whose files are then uploaded to every target. A summary is
// printed for every host and ErrHostsFailed is returned when any failed.
func Distribute(ctx context.Context, opts DistributeOptions) error {
	log, err := setupLogger(opts.LogLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.Options)
	if err != nil {
		return err
	}

	callback, err := hostKeyCallback(cfg, log)
	if err != nil {
		return err
	}

	material, err := resolveMaterial(ctx, cfg, log)
	if err != nil {
		return err
	}

	targets, err := collectTargets(ctx, cfg, opts.HostsFile, log)
	if err != nil {
		return err
	}

	if !opts.Yes && !opts.JSON && interactive() {
		ok, err := confirmDistribution(ctx, material.Domain, cfg.RemoteDir, targets)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return ErrAborted
		}
	}

	staged, err := store.Stage(material, cfg.CertDir)
	if err != nil {
		return fmt.Errorf("failed to stage certificate: %w", err)
	}
	log.Info().
		Str("domain", material.Domain).
		Str("certificate", staged.Certificate).
		Str("key", staged.Key).
		Msg("Staged certificate")

	tr := newTransport(fleet.SSHConfig{
		HostKeyCallback: callback,
		DialTimeout:     cfg.ConnectTimeout,
		MaxRetries:      cfg.ConnectRetries,
		RetryDelay:      config.LoadTimeouts().RetryInitialDelay,
		Logger:          log,
	})
	defer func() { _ = tr.Close() }()

	distOpts := []fleet.Option{
		fleet.WithConcurrency(cfg.Concurrency),
		fleet.WithRemoteDir(cfg.RemoteDir),
		fleet.WithVerify(cfg.Verify),
		fleet.WithPostCommand(cfg.PostCommand),
		fleet.WithLogger(log),
	}
	if !opts.JSON && interactive() {
		distOpts = append(distOpts, fleet.WithStateHook(progressPrinter(progressOutput, len(targets))))
	}
	distributor := fleet.NewDistributor(tr, distOpts...)

	log.Info().
		Int("hosts", len(targets)).
		Int("concurrency", cfg.Concurrency).
		Str("remote_dir", cfg.RemoteDir).
		Msg("Distributing certificate")

	started := time.Now()
	results, err := distributor.Distribute(ctx, targets, cfg.CertDir)
	if err != nil {
		return fmt.Errorf("distribution failed: %w", err)
	}

	report := newReport(material.Domain, results, time.Since(started))

	if opts.MetricsFile != "" {
		if err := writeMetrics(opts.MetricsFile, material, results); err != nil {
			log.Warn().Err(err).Str("path", opts.MetricsFile).Msg("Failed to write metrics")
		}
	}

	if err := printReport(report, opts.JSON); err != nil {
		return err
	}

	if report.Failed > 0 {
		return fmt.Errorf("%w: %d of %d hosts failed", ErrHostsFailed, report.Failed, len(results))
	}
	return nil
}

// hostKeyCallback builds the callback for the configured policy. The
// insecure policy is logged on every run.
func hostKeyCallback(cfg *config.Config, log zerolog.Logger) (gossh.HostKeyCallback, error) {
	policy, err := ssh.ParseHostKeyPolicy(cfg.HostKeyPolicy)
	if err != nil {
		return nil, err
	}

	if policy == ssh.PolicyInsecure {
		log.Warn().Msg("Host key verification is disabled (host-key-policy=insecure)")
	}

	callback, err := ssh.NewHostKeyCallback(policy, cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to set up host key verification: %w", err)
	}
	return callback, nil
}

func writeMetrics(path string, material *store.Material, results []fleet.Result) error {
	recorder := metrics.NewRecorder()
	recorder.RecordResults(results, time.Now())
	recorder.RecordCertificate(material.Domain, material.NotAfter())
	return recorder.WriteTextfile(path)
}
