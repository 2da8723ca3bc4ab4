package fleet

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is a local file scheduled for upload.
type File struct {
	Name string
	Path string
	Mode os.FileMode
	Size int64
}

// ListFiles returns the regular files directly inside dir, sorted by name.
// Subdirectories are not descended into. Symlinks are followed.
func ListFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, File{
			Name: entry.Name(),
			Path: path,
			Mode: info.Mode().Perm(),
			Size: info.Size(),
		})
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	return files, nil
}
