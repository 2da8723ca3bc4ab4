package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chronicc/acme-distributor/internal/config"
	"github.com/chronicc/acme-distributor/internal/fleet"
)

const flatStore = `[{"domain": "example.test", "certificate": "CERT_A", "key": "KEY_A"}]`

func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func writeStoreFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acme.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fakeTransport records uploads per host and fails hosts listed in fail.
type fakeTransport struct {
	fail map[string]error

	mu       sync.Mutex
	connects []string
	uploads  map[string][]string
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		fail:    make(map[string]error),
		uploads: make(map[string][]string),
	}
}

func (f *fakeTransport) Connect(_ context.Context, target fleet.Target) (fleet.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, target.Host)
	if err := f.fail[target.Host]; err != nil {
		return nil, err
	}
	return &fakeSession{transport: f, host: target.Host}, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) uploaded(host string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads[host]...)
}

type fakeSession struct {
	transport *fakeTransport
	host      string
}

func (s *fakeSession) Upload(_ context.Context, localPath, remotePath string, _ os.FileMode) (int64, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.transport.uploads[s.host] = append(s.transport.uploads[s.host], remotePath)
	return int64(len(data)), nil
}

func (s *fakeSession) ReadDir(string) ([]os.FileInfo, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSession) Run(context.Context, string) (string, error) {
	return "", nil
}

func (s *fakeSession) Close() error {
	return nil
}

// stubFactories replaces every factory with a test double and restores them
// when the test ends.
func stubFactories(t *testing.T, tr *fakeTransport) {
	t.Helper()

	origLoad := loadConfigFile
	origTransport := newTransport
	origDiscoverer := newDiscoverer
	origObjects := newObjectStore
	origConfirm := confirmDistribution
	origInteractive := interactive
	origLogger := setupLogger
	origProgress := progressOutput
	t.Cleanup(func() {
		loadConfigFile = origLoad
		newTransport = origTransport
		newDiscoverer = origDiscoverer
		newObjectStore = origObjects
		confirmDistribution = origConfirm
		interactive = origInteractive
		setupLogger = origLogger
		progressOutput = origProgress
	})

	loadConfigFile = func(string) (*config.Config, error) { return &config.Config{}, nil }
	newTransport = func(fleet.SSHConfig) transport { return tr }
	confirmDistribution = func(context.Context, string, string, []fleet.Target) (bool, error) {
		t.Fatal("unexpected confirmation prompt")
		return false, nil
	}
	interactive = func() bool { return false }
	setupLogger = func(string) (zerolog.Logger, error) { return zerolog.Nop(), nil }
	progressOutput = io.Discard
}

// baseOptions points the handlers at a store and a fresh certificate
// directory, with hosts given in the same form as --host.
func baseOptions(t *testing.T, storePath string, hosts ...string) Options {
	t.Helper()
	certDir := filepath.Join(t.TempDir(), "certs")
	return Options{
		Override: func(cfg *config.Config) error {
			cfg.Store = storePath
			cfg.Domain = "example.test"
			cfg.CertDir = certDir
			cfg.HostKeyPolicy = "insecure"
			for _, h := range hosts {
				host, err := config.ParseHost(h)
				if err != nil {
					return err
				}
				cfg.Hosts = append(cfg.Hosts, host)
			}
			return nil
		},
	}
}
