package fleet

import (
	"context"
	"errors"
	"os"
	"path"
	"sync"
	"time"
)

// remoteFile is a file held by fakeHost.
type remoteFile struct {
	content []byte
	mode    os.FileMode
}

// fakeHost is the remote side of a fake session. It outlives sessions so
// repeated runs see the same files.
type fakeHost struct {
	mu       sync.Mutex
	files    map[string]remoteFile
	commands []string

	uploadErr error
	runErr    error
	// sizeDelta is added to reported sizes to simulate a corrupt transfer.
	sizeDelta int64
	// block makes Upload wait for cancellation; started is closed when it does.
	block   bool
	started chan struct{}
}

func newFakeHost() *fakeHost {
	return &fakeHost{files: make(map[string]remoteFile), started: make(chan struct{})}
}

func (h *fakeHost) snapshot() map[string]remoteFile {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]remoteFile, len(h.files))
	for k, v := range h.files {
		out[k] = v
	}
	return out
}

type fakeSession struct {
	host *fakeHost

	mu     sync.Mutex
	closed bool
	closes int
	done   chan struct{}
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) (int64, error) {
	if s.host.block {
		close(s.host.started)
		select {
		case <-s.done:
			return 0, errors.New("use of closed network connection")
		case <-time.After(5 * time.Second):
			return 0, errors.New("upload was never interrupted")
		}
	}
	if s.isClosed() {
		return 0, errors.New("session closed")
	}
	if s.host.uploadErr != nil {
		return 0, s.host.uploadErr
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}

	s.host.mu.Lock()
	s.host.files[remotePath] = remoteFile{content: content, mode: mode}
	s.host.mu.Unlock()
	return int64(len(content)), nil
}

func (s *fakeSession) ReadDir(dir string) ([]os.FileInfo, error) {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()

	var infos []os.FileInfo
	for p, f := range s.host.files {
		if path.Dir(p) == dir {
			infos = append(infos, fakeInfo{name: path.Base(p), size: int64(len(f.content)) + s.host.sizeDelta})
		}
	}
	return infos, nil
}

func (s *fakeSession) Run(_ context.Context, command string) (string, error) {
	s.host.mu.Lock()
	s.host.commands = append(s.host.commands, command)
	s.host.mu.Unlock()
	if s.host.runErr != nil {
		return "", s.host.runErr
	}
	return "ok", nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

type fakeInfo struct {
	os.FileInfo
	name string
	size int64
}

func (i fakeInfo) Name() string { return i.name }
func (i fakeInfo) Size() int64  { return i.size }

// fakeTransport maps host names to fake hosts or connection errors.
type fakeTransport struct {
	mu         sync.Mutex
	hosts      map[string]*fakeHost
	connectErr map[string]error
	sessions   []*fakeSession
	connects   []string

	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		hosts:      make(map[string]*fakeHost),
		connectErr: make(map[string]error),
	}
}

func (f *fakeTransport) host(name string) *fakeHost {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[name]
	if !ok {
		h = newFakeHost()
		f.hosts[name] = h
	}
	return h
}

func (f *fakeTransport) Connect(_ context.Context, target Target) (Session, error) {
	f.mu.Lock()
	f.connects = append(f.connects, target.Host)
	err := f.connectErr[target.Host]
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	session := &fakeSession{host: f.host(target.Host), done: make(chan struct{})}
	f.mu.Lock()
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()
	return session, nil
}
