package fleet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// certDir creates a certificate directory with a certificate, a key and a
// subdirectory that must be ignored.
func certDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "example.test.crt"), []byte("CERT_A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "example.test.key"), []byte("KEY_A"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "archive"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive", "old.crt"), []byte("OLD"), 0o644))
	return dir
}

func targets(hosts ...string) []Target {
	out := make([]Target, len(hosts))
	for i, h := range hosts {
		out[i] = Target{Host: h, Port: 22, User: "root"}
	}
	return out
}

func TestDistribute_OneHostRefused(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr["h2"] = errors.New("dial tcp 192.0.2.2:22: connect: connection refused")

	d := NewDistributor(transport)
	results, err := d.Distribute(context.Background(), targets("h1", "h2"), certDir(t))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "h1", results[0].Target.Host)
	assert.Equal(t, StateSucceeded, results[0].State)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []string{"/etc/ssl/certs/example.test.crt", "/etc/ssl/certs/example.test.key"}, results[0].Files)
	assert.Equal(t, int64(len("CERT_A")+len("KEY_A")), results[0].Bytes)

	assert.Equal(t, "h2", results[1].Target.Host)
	assert.Equal(t, StateFailed, results[1].State)
	assert.ErrorIs(t, results[1].Err, ErrConnect)
	assert.Contains(t, results[1].Reason(), "connection refused")

	var hostErr *HostError
	require.ErrorAs(t, results[1].Err, &hostErr)
	assert.Equal(t, "root@h2", hostErr.Host)
	assert.Equal(t, PhaseConnect, hostErr.Phase)
}

func TestDistribute_ResultsMatchTargets(t *testing.T) {
	tests := []struct {
		name    string
		hosts   int
		failing int
	}{
		{"single host fails", 1, 0},
		{"first of five fails", 5, 0},
		{"middle of five fails", 5, 2},
		{"last of eight fails", 8, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			hosts := make([]string, tt.hosts)
			for i := range hosts {
				hosts[i] = fmt.Sprintf("host-%d", i)
			}
			transport.connectErr[hosts[tt.failing]] = errors.New("i/o timeout")

			results, err := NewDistributor(transport, WithConcurrency(3)).
				Distribute(context.Background(), targets(hosts...), certDir(t))
			require.NoError(t, err)
			require.Len(t, results, tt.hosts)

			for i, r := range results {
				assert.Equal(t, hosts[i], r.Target.Host)
				if i == tt.failing {
					assert.False(t, r.Succeeded())
					assert.ErrorIs(t, r.Err, ErrConnect)
				} else {
					assert.True(t, r.Succeeded(), "host %s: %v", hosts[i], r.Err)
				}
			}
			assert.Len(t, transport.connects, tt.hosts)
		})
	}
}

func TestDistribute_AuthFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr["h1"] = fmt.Errorf("%w: unable to authenticate", ErrAuth)

	results, err := NewDistributor(transport).Distribute(context.Background(), targets("h1"), certDir(t))
	require.NoError(t, err)

	assert.ErrorIs(t, results[0].Err, ErrAuth)
	assert.NotErrorIs(t, results[0].Err, ErrConnect)
}

func TestDistribute_UploadFailureClosesSession(t *testing.T) {
	transport := newFakeTransport()
	transport.host("h1").uploadErr = errors.New("permission denied")

	results, err := NewDistributor(transport).Distribute(context.Background(), targets("h1", "h2"), certDir(t))
	require.NoError(t, err)

	assert.ErrorIs(t, results[0].Err, ErrTransfer)
	var hostErr *HostError
	require.ErrorAs(t, results[0].Err, &hostErr)
	assert.Equal(t, PhaseUpload, hostErr.Phase)
	assert.True(t, results[1].Succeeded())

	require.Len(t, transport.sessions, 2)
	for _, s := range transport.sessions {
		assert.True(t, s.isClosed())
	}
}

func TestDistribute_UploadsAllFilesWithModes(t *testing.T) {
	transport := newFakeTransport()
	dir := certDir(t)

	results, err := NewDistributor(transport, WithRemoteDir("/etc/haproxy/certs")).
		Distribute(context.Background(), targets("h1"), dir)
	require.NoError(t, err)
	require.True(t, results[0].Succeeded())

	files := transport.host("h1").snapshot()
	require.Len(t, files, 2)
	assert.Equal(t, "CERT_A", string(files["/etc/haproxy/certs/example.test.crt"].content))
	assert.Equal(t, os.FileMode(0o644), files["/etc/haproxy/certs/example.test.crt"].mode)
	assert.Equal(t, "KEY_A", string(files["/etc/haproxy/certs/example.test.key"].content))
	assert.Equal(t, os.FileMode(0o600), files["/etc/haproxy/certs/example.test.key"].mode)
}

func TestDistribute_Idempotent(t *testing.T) {
	transport := newFakeTransport()
	dir := certDir(t)
	d := NewDistributor(transport)

	first, err := d.Distribute(context.Background(), targets("h1"), dir)
	require.NoError(t, err)
	before := transport.host("h1").snapshot()

	second, err := d.Distribute(context.Background(), targets("h1"), dir)
	require.NoError(t, err)
	after := transport.host("h1").snapshot()

	assert.True(t, first[0].Succeeded())
	assert.True(t, second[0].Succeeded())
	assert.Equal(t, before, after)
}

func TestDistribute_Verify(t *testing.T) {
	transport := newFakeTransport()
	transport.host("bad").sizeDelta = -1

	results, err := NewDistributor(transport, WithVerify(true)).
		Distribute(context.Background(), targets("good", "bad"), certDir(t))
	require.NoError(t, err)

	assert.True(t, results[0].Succeeded())
	assert.ErrorIs(t, results[1].Err, ErrTransfer)

	var hostErr *HostError
	require.ErrorAs(t, results[1].Err, &hostErr)
	assert.Equal(t, PhaseVerify, hostErr.Phase)
	assert.Contains(t, hostErr.Error(), "expected")
}

func TestDistribute_PostCommand(t *testing.T) {
	transport := newFakeTransport()
	transport.host("h2").runErr = errors.New("exit status 1")

	var mu sync.Mutex
	states := map[string][]State{}
	hook := func(target Target, state State) {
		mu.Lock()
		defer mu.Unlock()
		states[target.Host] = append(states[target.Host], state)
	}

	results, err := NewDistributor(transport,
		WithPostCommand("update-ca-certificates"),
		WithStateHook(hook),
	).Distribute(context.Background(), targets("h1", "h2"), certDir(t))
	require.NoError(t, err)

	assert.True(t, results[0].Succeeded())
	assert.Equal(t, []string{"update-ca-certificates"}, transport.host("h1").commands)
	assert.Equal(t, []State{StateConnecting, StateUploading, StateRunning, StateSucceeded}, states["h1"])

	assert.ErrorIs(t, results[1].Err, ErrCommand)
	assert.Equal(t, []State{StateConnecting, StateUploading, StateRunning, StateFailed}, states["h2"])
}

func TestDistribute_StatesWithoutCommand(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr["down"] = errors.New("no route to host")

	var mu sync.Mutex
	states := map[string][]State{}

	_, err := NewDistributor(transport, WithStateHook(func(target Target, state State) {
		mu.Lock()
		defer mu.Unlock()
		states[target.Host] = append(states[target.Host], state)
	})).Distribute(context.Background(), targets("up", "down"), certDir(t))
	require.NoError(t, err)

	assert.Equal(t, []State{StateConnecting, StateUploading, StateSucceeded}, states["up"])
	assert.Equal(t, []State{StateConnecting, StateFailed}, states["down"])
}

func TestDistribute_CertDirErrors(t *testing.T) {
	empty := t.TempDir()
	onlySubdir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(onlySubdir, "nested"), 0o700))

	tests := []struct {
		name   string
		dir    string
		target error
	}{
		{"missing directory", filepath.Join(t.TempDir(), "absent"), os.ErrNotExist},
		{"empty directory", empty, ErrNoFiles},
		{"only subdirectories", onlySubdir, ErrNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			results, err := NewDistributor(transport).Distribute(context.Background(), targets("h1"), tt.dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, results)
			assert.Empty(t, transport.connects)
		})
	}
}

func TestDistribute_ConcurrencyBound(t *testing.T) {
	transport := newFakeTransport()
	transport.delay = 20 * time.Millisecond

	hosts := make([]string, 10)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%d", i)
	}

	results, err := NewDistributor(transport, WithConcurrency(2)).
		Distribute(context.Background(), targets(hosts...), certDir(t))
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.LessOrEqual(t, transport.maxInFlight, 2)
}

func TestDistribute_Sequential(t *testing.T) {
	transport := newFakeTransport()

	_, err := NewDistributor(transport, WithConcurrency(1)).
		Distribute(context.Background(), targets("a", "b", "c"), certDir(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, transport.connects)
	assert.Equal(t, 1, transport.maxInFlight)
}

func TestDistribute_CancellationClosesSessions(t *testing.T) {
	transport := newFakeTransport()
	blocked := transport.host("h1")
	blocked.block = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-blocked.started
		cancel()
	}()

	results, err := NewDistributor(transport, WithConcurrency(1)).
		Distribute(ctx, targets("h1", "h2", "h3"), certDir(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.Equal(t, StateFailed, r.State, r.Target.Host)
		assert.ErrorIs(t, r.Err, context.Canceled, r.Target.Host)
	}
	assert.ErrorIs(t, results[0].Err, ErrTransfer)

	require.Len(t, transport.sessions, 1)
	assert.True(t, transport.sessions[0].isClosed())
	assert.Equal(t, []string{"h1"}, transport.connects)
}

func TestDistribute_NoTargets(t *testing.T) {
	results, err := NewDistributor(newFakeTransport()).Distribute(context.Background(), nil, certDir(t))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{Host: "web1"}, "web1"},
		{Target{Host: "web1", Port: 22, User: "root"}, "root@web1"},
		{Target{Host: "web1", Port: 2222, User: "deploy"}, "deploy@web1:2222"},
		{Target{Host: "2001:db8::1", Port: 2222}, "[2001:db8::1]:2222"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.String())
		})
	}
}

func TestListFiles(t *testing.T) {
	files, err := ListFiles(certDir(t))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "example.test.crt", files[0].Name)
	assert.Equal(t, int64(6), files[0].Size)
	assert.Equal(t, "example.test.key", files[1].Name)
	assert.Equal(t, os.FileMode(0o600), files[1].Mode)
}
