package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	certFileMode = 0o644
	keyFileMode  = 0o600
	stageDirMode = 0o700
)

// StagedFiles are the paths written by Stage.
type StagedFiles struct {
	Certificate string
	Key         string
}

// Stage writes the material as <name>.crt and <name>.key into dir, where name
// is the domain with wildcard labels replaced by "_wildcard". The directory is
// created when missing. Files are replaced atomically.
func Stage(m *Material, dir string) (*StagedFiles, error) {
	if m == nil {
		return nil, fmt.Errorf("material cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("certificate directory cannot be empty")
	}

	if err := os.MkdirAll(dir, stageDirMode); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	cert, key := m.PEM()
	name := FileName(m.Domain)

	files := &StagedFiles{
		Certificate: filepath.Join(dir, name+".crt"),
		Key:         filepath.Join(dir, name+".key"),
	}

	if err := writeFileAtomic(files.Certificate, cert, certFileMode); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(files.Key, key, keyFileMode); err != nil {
		return nil, err
	}

	return files, nil
}

// FileName turns a domain into a file name stem.
func FileName(domain string) string {
	name := strings.ReplaceAll(domain, "*", "_wildcard")
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
