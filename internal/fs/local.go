package fs

import (
	"os"
	"path/filepath"
)

// LocalFS implements FileSystem using the local filesystem.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory. A relative
// root is resolved against the working directory on every call.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) abs(name string) string {
	name = Clean(name)
	if name == "" {
		return l.root
	}
	return filepath.Join(l.root, filepath.FromSlash(name))
}

// ReadFile reads the contents of the file at the given path relative to the root.
func (l *LocalFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(l.abs(name))
}

// Stat returns metadata for the file or directory at the given path relative to the root.
func (l *LocalFS) Stat(name string) (FileInfo, error) {
	info, err := os.Stat(l.abs(name))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
