// Package sshtest runs an in-process SSH server with an SFTP subsystem for
// tests. Remote paths map directly onto the local filesystem.
package sshtest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/chronicc/acme-distributor/internal/util/keygen"
)

// Server accepts one authorized key and serves SFTP plus a few exec commands:
// "true" exits 0, "false" exits 1, "echo <text>" prints text, and
// "interleave <n>" writes n numbered lines to stdout and stderr concurrently.
type Server struct {
	Host    string
	Port    int
	HostKey ssh.Signer

	listener net.Listener
	config   *ssh.ServerConfig
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    []net.Conn
	commands []string
	sessions int
}

// NewServer starts a server on 127.0.0.1 that authenticates authorized and
// shuts down when the test ends.
func NewServer(t *testing.T, authorized ssh.PublicKey) *Server {
	t.Helper()

	hostKey, err := keygen.GenerateEd25519KeyPair("sshtest-host")
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{
		Host:     "127.0.0.1",
		Port:     listener.Addr().(*net.TCPAddr).Port,
		HostKey:  hostKey.Signer,
		listener: listener,
	}

	s.config = &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	s.config.AddHostKey(hostKey.Signer)

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(func() {
		_ = listener.Close()
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})

	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// KnownHostsLine returns the known_hosts entry for this server.
func (s *Server) KnownHostsLine() string {
	return knownhosts.Line([]string{knownhosts.Normalize(s.Addr())}, s.HostKey.PublicKey())
}

// Commands returns the exec commands received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Sessions returns the number of authenticated connections accepted.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer func() { _ = sconn.Close() }()

	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()

	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleSession(channel, requests)
		}()
	}
	wg.Wait()
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = channel.Close() }()

	for req := range requests {
		switch req.Type {
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
				_ = server.Close()
				return
			}
			_ = server.Close()
			return

		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			status := s.exec(channel, payload.Command)
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			return

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *Server) exec(channel ssh.Channel, command string) uint32 {
	var out io.Writer = channel
	switch {
	case command == "true":
		return 0
	case command == "false":
		_, _ = fmt.Fprintln(out, "command failed")
		return 1
	case strings.HasPrefix(command, "echo "):
		_, _ = fmt.Fprintln(out, strings.TrimPrefix(command, "echo "))
		return 0
	case strings.HasPrefix(command, "interleave "):
		n, err := strconv.Atoi(strings.TrimPrefix(command, "interleave "))
		if err != nil {
			return 2
		}
		interleave(channel, n)
		return 0
	}
	_, _ = fmt.Fprintf(out, "%s: command not found\n", command)
	return 127
}

func interleave(channel ssh.Channel, n int) {
	var wg sync.WaitGroup
	write := func(w io.Writer, prefix string) {
		defer wg.Done()
		for i := range n {
			_, _ = fmt.Fprintf(w, "%s %d\n", prefix, i)
		}
	}
	wg.Add(2)
	go write(channel, "out")
	go write(channel.Stderr(), "err")
	wg.Wait()
}
