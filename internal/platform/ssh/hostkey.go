package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy selects how server host keys are verified.
type HostKeyPolicy string

const (
	// PolicyKnownHosts accepts only keys already present in known_hosts.
	PolicyKnownHosts HostKeyPolicy = "known-hosts"

	// PolicyAcceptNew trusts unknown hosts on first use and records their key.
	// Changed keys of known hosts are still rejected.
	PolicyAcceptNew HostKeyPolicy = "accept-new"

	// PolicyInsecure accepts any host key.
	PolicyInsecure HostKeyPolicy = "insecure"
)

// Policies lists the supported host key policies.
var Policies = []HostKeyPolicy{PolicyKnownHosts, PolicyAcceptNew, PolicyInsecure}

// ParseHostKeyPolicy validates a policy name. An empty name selects
// PolicyKnownHosts.
func ParseHostKeyPolicy(name string) (HostKeyPolicy, error) {
	if name == "" {
		return PolicyKnownHosts, nil
	}
	for _, p := range Policies {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown host key policy %q (valid: %s, %s, %s)",
		name, PolicyKnownHosts, PolicyAcceptNew, PolicyInsecure)
}

// DefaultKnownHostsFile returns ~/.ssh/known_hosts.
func DefaultKnownHostsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ssh", "known_hosts")
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// NewHostKeyCallback builds the verification callback for policy. The
// returned callback is safe for concurrent use by many connections.
func NewHostKeyCallback(policy HostKeyPolicy, knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		knownHostsFile = DefaultKnownHostsFile()
	}

	switch policy {
	case PolicyKnownHosts, "":
		db, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", knownHostsFile, err)
		}
		return strictCallback(db), nil

	case PolicyAcceptNew:
		if err := ensureFile(knownHostsFile); err != nil {
			return nil, err
		}
		db, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", knownHostsFile, err)
		}
		tofu := &trustOnFirstUse{
			path:     knownHostsFile,
			db:       db,
			accepted: make(map[string]ssh.PublicKey),
		}
		return tofu.check, nil

	case PolicyInsecure:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly requested by the operator
	}

	return nil, fmt.Errorf("unknown host key policy %q", policy)
}

func strictCallback(db ssh.HostKeyCallback) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := db(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return fmt.Errorf("%w: %s is not in known hosts", ErrHostKeyRejected, hostname)
		}
		return hostKeyError(hostname, err)
	}
}

func hostKeyError(hostname string, err error) error {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return fmt.Errorf("%w: host key for %s does not match known hosts: %w", ErrHostKeyRejected, hostname, err)
	}
	return fmt.Errorf("%w: %w", ErrHostKeyRejected, err)
}

// trustOnFirstUse appends unknown host keys to the known hosts file.
type trustOnFirstUse struct {
	mu       sync.Mutex
	path     string
	db       ssh.HostKeyCallback
	accepted map[string]ssh.PublicKey
}

func (t *trustOnFirstUse) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	err := t.db(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
		return hostKeyError(hostname, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	addr := knownhosts.Normalize(hostname)
	if prev, ok := t.accepted[addr]; ok {
		if bytes.Equal(prev.Marshal(), key.Marshal()) {
			return nil
		}
		return fmt.Errorf("%w: host key for %s changed during this run", ErrHostKeyRejected, hostname)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open known hosts: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "%s\n", knownhosts.Line([]string{addr}, key)); err != nil {
		return fmt.Errorf("failed to record host key for %s: %w", hostname, err)
	}

	t.accepted[addr] = key
	return nil
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create known hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create known hosts file: %w", err)
	}
	return f.Close()
}
