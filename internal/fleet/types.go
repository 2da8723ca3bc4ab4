package fleet

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"
)

// Target is one host to distribute to.
type Target struct {
	Host         string
	Port         int
	User         string
	IdentityFile string
}

// String renders the target as [user@]host[:port].
func (t Target) String() string {
	s := t.Host
	if t.Port != 0 && t.Port != 22 {
		s = net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	}
	if t.User != "" {
		s = t.User + "@" + s
	}
	return s
}

// State is the progress of one host.
type State string

const (
	StatePending    State = "pending"
	StateConnecting State = "connecting"
	StateUploading  State = "uploading"
	StateRunning    State = "running"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Phase names the step a host failed in.
type Phase string

const (
	PhaseConnect Phase = "connect"
	PhaseUpload  Phase = "upload"
	PhaseVerify  Phase = "verify"
	PhaseCommand Phase = "command"
)

// Result is the outcome for one target.
type Result struct {
	Target   Target
	State    State
	Err      error
	Files    []string
	Bytes    int64
	Duration time.Duration
}

// Succeeded reports whether every step completed.
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// Reason returns the failure message, or an empty string on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Transport opens sessions to targets. Implementations must wrap
// authentication failures with ErrAuth; every other error is treated as
// ErrConnect.
type Transport interface {
	Connect(ctx context.Context, target Target) (Session, error)
}

// Session is an open connection to one host. Close must be safe to call
// concurrently with a transfer in progress and more than once.
type Session interface {
	Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) (int64, error)
	ReadDir(dir string) ([]os.FileInfo, error)
	Run(ctx context.Context, command string) (string, error)
	Close() error
}
