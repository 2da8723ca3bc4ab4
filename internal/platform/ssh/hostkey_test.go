package ssh

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var testRemote = &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}

func TestParseHostKeyPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    HostKeyPolicy
		wantErr bool
	}{
		{"", PolicyKnownHosts, false},
		{"known-hosts", PolicyKnownHosts, false},
		{"accept-new", PolicyAcceptNew, false},
		{"insecure", PolicyInsecure, false},
		{"yolo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHostKeyPolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownHostsPolicy(t *testing.T) {
	trusted := generateTestKey(t).Signer.PublicKey()
	other := generateTestKey(t).Signer.PublicKey()

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize("web1.example.test:22")}, trusted)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

	callback, err := NewHostKeyCallback(PolicyKnownHosts, path)
	require.NoError(t, err)

	assert.NoError(t, callback("web1.example.test:22", testRemote, trusted))

	err = callback("web1.example.test:22", testRemote, other)
	assert.ErrorIs(t, err, ErrHostKeyRejected)
	assert.Contains(t, err.Error(), "does not match")

	err = callback("web2.example.test:22", testRemote, trusted)
	assert.ErrorIs(t, err, ErrHostKeyRejected)
	assert.Contains(t, err.Error(), "is not in known hosts")
}

func TestKnownHostsPolicy_MissingFile(t *testing.T) {
	_, err := NewHostKeyCallback(PolicyKnownHosts, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestAcceptNewPolicy(t *testing.T) {
	first := generateTestKey(t).Signer.PublicKey()
	changed := generateTestKey(t).Signer.PublicKey()
	path := filepath.Join(t.TempDir(), "nested", "known_hosts")

	callback, err := NewHostKeyCallback(PolicyAcceptNew, path)
	require.NoError(t, err)

	// Unknown host is trusted and recorded
	require.NoError(t, callback("web1.example.test:22", testRemote, first))
	require.NoError(t, callback("web1.example.test:22", testRemote, first))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "\n"))
	assert.Contains(t, string(content), "web1.example.test")

	// Changed key within the same run
	err = callback("web1.example.test:22", testRemote, changed)
	assert.ErrorIs(t, err, ErrHostKeyRejected)

	// A later run reads the recorded key and rejects a changed one
	reloaded, err := NewHostKeyCallback(PolicyAcceptNew, path)
	require.NoError(t, err)
	assert.NoError(t, reloaded("web1.example.test:22", testRemote, first))
	assert.ErrorIs(t, reloaded("web1.example.test:22", testRemote, changed), ErrHostKeyRejected)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestInsecurePolicy(t *testing.T) {
	callback, err := NewHostKeyCallback(PolicyInsecure, filepath.Join(t.TempDir(), "unused"))
	require.NoError(t, err)

	var key ssh.PublicKey = generateTestKey(t).Signer.PublicKey()
	assert.NoError(t, callback("anything:22", testRemote, key))
}

func TestParsePrivateKey(t *testing.T) {
	key := generateTestKey(t)

	signer, err := ParsePrivateKey(key.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, key.Signer.PublicKey().Marshal(), signer.PublicKey().Marshal())

	_, err = ParsePrivateKey([]byte("invalid key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse private key")
}

func TestLoadAuth(t *testing.T) {
	key := generateTestKey(t)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, key.PrivateKey, 0o600))

	auth, err := LoadAuth(path)
	require.NoError(t, err)
	assert.Len(t, auth.Methods, 1)
	assert.NoError(t, auth.Close())

	_, err = LoadAuth(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestAgentAuth_NoSocket(t *testing.T) {
	_, err := AgentAuth("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSH_AUTH_SOCK")
}
