package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/chronicc/acme-distributor/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 30 * time.Second
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host string
	Port int
	User string

	// Auth lists the authentication methods offered to the server.
	Auth []ssh.AuthMethod

	// DialTimeout bounds the TCP connect and the SSH handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the number of additional connection attempts after a
	// failed one. Authentication and host key failures are never retried.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback verifies the server's host key. It is required; see
	// NewHostKeyCallback.
	HostKeyCallback ssh.HostKeyCallback

	// OnRetry is called before each connection retry.
	OnRetry func(attempt int, err error)
}

// Client connects to one remote host.
type Client struct {
	config *Config
}

// NewClient validates the configuration and applies defaults.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.Auth) == 0 {
		return nil, fmt.Errorf("config auth methods cannot be empty")
	}
	if cfg.HostKeyCallback == nil {
		return nil, fmt.Errorf("config host key callback cannot be nil")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries < 0 {
		configCopy.MaxRetries = 0
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}

	return &Client{config: &configCopy}, nil
}

// Addr returns host:port of the remote server.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Connect dials the host, authenticates and opens an SFTP channel.
// The caller must Close the returned session.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var client *ssh.Client

	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = c.dial(ctx)
		if dialErr != nil && (errors.Is(dialErr, ErrAuthFailed) || errors.Is(dialErr, ErrHostKeyRejected)) {
			return retry.Fatal(dialErr)
		}
		return dialErr
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
		retry.WithOnRetry(c.config.OnRetry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", c.Addr(), err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to start SFTP on %s: %w", c.Addr(), err)
	}

	return &Session{host: c.config.Host, ssh: client, sftp: sftpClient}, nil
}

// dial performs one connection attempt bounded by DialTimeout.
func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	addr := c.Addr()
	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            c.config.Auth,
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// The handshake has no context support; closing the connection aborts it.
	_ = conn.SetDeadline(time.Now().Add(c.config.DialTimeout))
	stop := context.AfterFunc(dialCtx, func() { _ = conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() {
		if err == nil {
			_ = sshConn.Close()
		}
		return nil, fmt.Errorf("ssh handshake with %s interrupted: %w", addr, context.Cause(dialCtx))
	}
	if err != nil {
		_ = conn.Close()
		if isAuthError(err) && !errors.Is(err, ErrHostKeyRejected) {
			return nil, fmt.Errorf("%w for %s@%s: %w", ErrAuthFailed, c.config.User, addr, err)
		}
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}
