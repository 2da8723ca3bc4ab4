package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Auth holds the authentication methods for a connection and releases the
// resources behind them.
type Auth struct {
	Methods []ssh.AuthMethod
	closer  func() error
}

// Close releases the agent connection, if any.
func (a *Auth) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer()
}

// LoadAuth builds authentication from an identity file, falling back to the
// ssh-agent at SSH_AUTH_SOCK when identityFile is empty.
func LoadAuth(identityFile string) (*Auth, error) {
	if identityFile != "" {
		key, err := os.ReadFile(identityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read identity file: %w", err)
		}
		signer, err := ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load identity file %s: %w", identityFile, err)
		}
		return &Auth{Methods: []ssh.AuthMethod{ssh.PublicKeys(signer)}}, nil
	}

	return AgentAuth(os.Getenv("SSH_AUTH_SOCK"))
}

// AgentAuth connects to the ssh-agent listening on socket.
func AgentAuth(socket string) (*Auth, error) {
	if socket == "" {
		return nil, fmt.Errorf("no identity file given and SSH_AUTH_SOCK is not set")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ssh-agent: %w", err)
	}

	client := agent.NewClient(conn)
	return &Auth{
		Methods: []ssh.AuthMethod{ssh.PublicKeysCallback(client.Signers)},
		closer:  conn.Close,
	}, nil
}

// ParsePrivateKey parses an unencrypted private key in any format supported
// by x/crypto/ssh.
func ParsePrivateKey(key []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("private key is passphrase protected, load it into ssh-agent instead: %w", err)
		}
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}
