package ssh

import (
	"errors"
	"strings"
)

var (
	// ErrAuthFailed is returned when the server rejected every offered key.
	ErrAuthFailed = errors.New("ssh authentication failed")

	// ErrHostKeyRejected is returned when the host key policy refused the
	// server's key.
	ErrHostKeyRejected = errors.New("host key rejected")
)

// isAuthError reports whether a handshake error means the server refused
// authentication. x/crypto/ssh does not export a typed error for this case.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthFailed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}
