package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Session is an open connection to one host. Close is safe to call more than
// once and from another goroutine, which interrupts any transfer in flight.
type Session struct {
	host string
	ssh  *ssh.Client
	sftp *sftp.Client

	closeOnce sync.Once
	closeErr  error
}

// Upload copies the local file to remotePath, creating or truncating it, and
// sets its permission bits to mode. It returns the number of bytes written.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := s.sftp.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}

	n, err := dst.ReadFrom(src)
	if err != nil {
		_ = dst.Close()
		return n, fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}

	if err := dst.Chmod(mode.Perm()); err != nil {
		_ = dst.Close()
		return n, fmt.Errorf("failed to chmod remote file %s: %w", remotePath, err)
	}

	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("failed to close remote file %s: %w", remotePath, err)
	}

	return n, nil
}

// ReadDir lists the remote directory.
func (s *Session) ReadDir(dir string) ([]os.FileInfo, error) {
	entries, err := s.sftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote directory %s: %w", dir, err)
	}
	return entries, nil
}

// Run executes a command and returns its combined output. Cancelling ctx
// closes the command's channel.
func (s *Session) Run(ctx context.Context, command string) (string, error) {
	session, err := s.ssh.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = session.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	// CombinedOutput serializes the stdout and stderr copies into one buffer.
	output, err := session.CombinedOutput(command)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return string(output), fmt.Errorf("command interrupted on %s: %w", s.host, ctxErr)
		}
		return string(output), fmt.Errorf("command failed on %s: %w\nCommand: %s\nOutput: %s",
			s.host, err, command, string(output))
	}

	return string(output), nil
}

// Close closes the SFTP channel and the SSH connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		sftpErr := s.sftp.Close()
		sshErr := s.ssh.Close()
		if sftpErr != nil && sftpErr != io.EOF {
			s.closeErr = sftpErr
			return
		}
		s.closeErr = sshErr
	})
	return s.closeErr
}
