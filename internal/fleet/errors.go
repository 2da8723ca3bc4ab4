package fleet

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect covers network failures, timeouts and host key rejections.
	ErrConnect = errors.New("connection failed")

	// ErrAuth means the host rejected the credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrTransfer covers failed uploads and failed remote verification.
	ErrTransfer = errors.New("transfer failed")

	// ErrCommand means the post-upload command failed.
	ErrCommand = errors.New("post-upload command failed")

	// ErrNoFiles is returned by Distribute when the certificate directory has
	// no regular files.
	ErrNoFiles = errors.New("no files to distribute")
)

// HostError is the failure of one host.
type HostError struct {
	Host  string
	Phase Phase
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Host, e.Phase, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}
