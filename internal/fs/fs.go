// Package fs provides the read-only asset sources the server reads from:
// a directory on local disk or a directory inside a git ref.
package fs

import (
	"path"
	"strings"
	"time"
)

// FileInfo holds file metadata.
type FileInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FileSystem abstracts read access to the static asset tree. Paths are
// slash-separated and relative to the tree root; "" names the root itself.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (FileInfo, error)
}

// Clean normalizes a request path to a root-relative path that cannot
// climb above the root. The root itself is returned as "".
func Clean(name string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}
