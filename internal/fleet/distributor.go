package fleet

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/chronicc/acme-distributor/internal/util/async"
)

const (
	// DefaultRemoteDir is where certificate files are written on each host.
	DefaultRemoteDir = "/etc/ssl/certs"

	// DefaultConcurrency is the number of hosts handled at once.
	DefaultConcurrency = 4
)

// Distributor sends certificate files to targets.
type Distributor struct {
	transport   Transport
	concurrency int
	remoteDir   string
	verify      bool
	postCommand string
	logger      zerolog.Logger
	onState     func(Target, State)
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithConcurrency sets the number of hosts handled at once. 1 processes
// hosts sequentially.
func WithConcurrency(n int) Option {
	return func(d *Distributor) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRemoteDir sets the directory files are written to on each host.
func WithRemoteDir(dir string) Option {
	return func(d *Distributor) {
		if dir != "" {
			d.remoteDir = dir
		}
	}
}

// WithVerify enables checking the remote listing after upload.
func WithVerify(verify bool) Option {
	return func(d *Distributor) {
		d.verify = verify
	}
}

// WithPostCommand sets a command run on each host after a successful upload.
func WithPostCommand(command string) Option {
	return func(d *Distributor) {
		d.postCommand = command
	}
}

// WithLogger sets the logger for per-host events.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Distributor) {
		d.logger = logger
	}
}

// WithStateHook registers a function called on every state change. It is
// called from worker goroutines and must be safe for concurrent use.
func WithStateHook(fn func(Target, State)) Option {
	return func(d *Distributor) {
		d.onState = fn
	}
}

// NewDistributor creates a Distributor using transport for all sessions.
func NewDistributor(transport Transport, opts ...Option) *Distributor {
	d := &Distributor{
		transport:   transport,
		concurrency: DefaultConcurrency,
		remoteDir:   DefaultRemoteDir,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute uploads every regular file in certDir to every target.
//
// The returned error is non-nil only when the run could not start (missing or
// empty certDir); no host has been contacted in that case. Otherwise the
// result slice has one entry per target in input order and per-host failures
// are reported there. Cancelling ctx closes in-flight sessions and fails the
// hosts not yet started.
func (d *Distributor) Distribute(ctx context.Context, targets []Target, certDir string) ([]Result, error) {
	files, err := ListFiles(certDir)
	if err != nil {
		return nil, err
	}

	d.logger.Info().
		Int("hosts", len(targets)).
		Int("files", len(files)).
		Str("remote_dir", d.remoteDir).
		Msg("Distributing certificates")

	results := make([]Result, len(targets))
	tasks := make([]async.Task, len(targets))
	for i, target := range targets {
		results[i] = Result{Target: target, State: StatePending}
		tasks[i] = async.Task{
			Name: target.String(),
			Func: func(ctx context.Context) error {
				results[i] = d.distributeTo(ctx, target, files)
				return results[i].Err
			},
		}
	}

	outcomes := async.Run(ctx, tasks, d.concurrency)

	for i, outcome := range outcomes {
		if results[i].State == StateSucceeded || results[i].State == StateFailed {
			continue
		}
		// Never started (cancelled) or aborted by a panic.
		cause := outcome.Err
		if cause == nil {
			cause = errors.New("host was not processed")
		}
		results[i].State = StateFailed
		results[i].Err = &HostError{Host: targets[i].String(), Phase: PhaseConnect, Err: cause}
		d.notify(targets[i], StateFailed)
	}

	return results, nil
}

func (d *Distributor) distributeTo(ctx context.Context, target Target, files []File) (res Result) {
	start := time.Now()
	res = Result{Target: target, State: StatePending}
	log := d.logger.With().Str("host", target.String()).Logger()

	defer func() {
		res.Duration = time.Since(start)
		d.notify(target, res.State)
		if res.Err != nil {
			log.Error().Err(res.Err).Dur("duration", res.Duration).Msg("Distribution failed")
			return
		}
		log.Info().
			Int("files", len(res.Files)).
			Int64("bytes", res.Bytes).
			Dur("duration", res.Duration).
			Msg("Distribution succeeded")
	}()

	fail := func(phase Phase, kind, cause error) Result {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(cause, ctxErr) {
			cause = fmt.Errorf("%w: %w", ctxErr, cause)
		}
		res.State = StateFailed
		res.Err = &HostError{
			Host:  target.String(),
			Phase: phase,
			Err:   fmt.Errorf("%w: %w", kind, cause),
		}
		return res
	}

	d.setState(&res, StateConnecting, log)
	session, err := d.transport.Connect(ctx, target)
	if err != nil {
		kind := ErrConnect
		if errors.Is(err, ErrAuth) {
			kind = ErrAuth
		}
		return fail(PhaseConnect, kind, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close session")
		}
	}()

	// Interrupts a transfer in flight when the run is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	d.setState(&res, StateUploading, log)
	for _, f := range files {
		remote := path.Join(d.remoteDir, f.Name)
		n, err := session.Upload(ctx, f.Path, remote, f.Mode)
		if err != nil {
			return fail(PhaseUpload, ErrTransfer, err)
		}
		res.Files = append(res.Files, remote)
		res.Bytes += n
		log.Debug().Str("file", remote).Int64("bytes", n).Msg("Uploaded")
	}

	if d.verify {
		if err := d.verifyRemote(session, files); err != nil {
			return fail(PhaseVerify, ErrTransfer, err)
		}
	}

	if d.postCommand != "" {
		d.setState(&res, StateRunning, log)
		output, err := session.Run(ctx, d.postCommand)
		if err != nil {
			return fail(PhaseCommand, ErrCommand, err)
		}
		log.Debug().Str("output", output).Msg("Post-upload command finished")
	}

	res.State = StateSucceeded
	return res
}

// verifyRemote checks that every file is present in the remote directory with
// the local size.
func (d *Distributor) verifyRemote(session Session, files []File) error {
	entries, err := session.ReadDir(d.remoteDir)
	if err != nil {
		return err
	}

	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		sizes[e.Name()] = e.Size()
	}

	for _, f := range files {
		size, ok := sizes[f.Name]
		if !ok {
			return fmt.Errorf("%s missing from remote directory %s", f.Name, d.remoteDir)
		}
		if size != f.Size {
			return fmt.Errorf("%s has %d bytes on remote, expected %d", f.Name, size, f.Size)
		}
	}
	return nil
}

func (d *Distributor) setState(res *Result, state State, log zerolog.Logger) {
	res.State = state
	log.Debug().Str("state", string(state)).Msg("State changed")
	d.notify(res.Target, state)
}

func (d *Distributor) notify(target Target, state State) {
	if d.onState != nil {
		d.onState(target, state)
	}
}
