package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gossh "golang.org/x/crypto/ssh"

	"github.com/chronicc/acme-distributor/internal/platform/ssh"
)

// SSHConfig configures SSHTransport.
type SSHConfig struct {
	HostKeyCallback gossh.HostKeyCallback
	DialTimeout     time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	Logger          zerolog.Logger

	// LoadAuth loads credentials for an identity file ("" selects the
	// ssh-agent). Defaults to ssh.LoadAuth.
	LoadAuth func(identityFile string) (*ssh.Auth, error)
}

// SSHTransport opens SSH/SFTP sessions. Credentials are loaded once per
// identity file and shared between hosts.
type SSHTransport struct {
	config SSHConfig

	mu    sync.Mutex
	auths map[string]*ssh.Auth
}

// NewSSHTransport creates an SSHTransport. Close releases agent connections.
func NewSSHTransport(cfg SSHConfig) *SSHTransport {
	if cfg.LoadAuth == nil {
		cfg.LoadAuth = ssh.LoadAuth
	}
	return &SSHTransport{
		config: cfg,
		auths:  make(map[string]*ssh.Auth),
	}
}

// Connect implements Transport.
func (t *SSHTransport) Connect(ctx context.Context, target Target) (Session, error) {
	auth, err := t.auth(target.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	client, err := ssh.NewClient(&ssh.Config{
		Host:            target.Host,
		Port:            target.Port,
		User:            target.User,
		Auth:            auth.Methods,
		DialTimeout:     t.config.DialTimeout,
		MaxRetries:      t.config.MaxRetries,
		RetryDelay:      t.config.RetryDelay,
		HostKeyCallback: t.config.HostKeyCallback,
		OnRetry: func(attempt int, err error) {
			t.config.Logger.Warn().
				Str("host", target.String()).
				Int("attempt", attempt).
				Err(err).
				Msg("Retrying connection")
		},
	})
	if err != nil {
		return nil, err
	}

	session, err := client.Connect(ctx)
	if err != nil {
		if errors.Is(err, ssh.ErrAuthFailed) {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return nil, err
	}
	return session, nil
}

func (t *SSHTransport) auth(identityFile string) (*ssh.Auth, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if auth, ok := t.auths[identityFile]; ok {
		return auth, nil
	}
	auth, err := t.config.LoadAuth(identityFile)
	if err != nil {
		return nil, err
	}
	t.auths[identityFile] = auth
	return auth, nil
}

// Close releases loaded credentials.
func (t *SSHTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for key, auth := range t.auths {
		if err := auth.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(t.auths, key)
	}
	return errors.Join(errs...)
}
