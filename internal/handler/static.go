package handler

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"strings"

	mfs "github.com/CageChen/indexserve/internal/fs"
	"github.com/gin-gonic/gin"
)

// StaticHandler serves files from the asset filesystem under a URL prefix
type StaticHandler struct {
	fs       mfs.FileSystem
	excluded func(path string) bool
}

// NewStaticHandler creates a handler serving files from fs. Paths for which
// excluded returns true answer 404; excluded may be nil.
func NewStaticHandler(fs mfs.FileSystem, excluded func(path string) bool) *StaticHandler {
	if excluded == nil {
		excluded = func(string) bool { return false }
	}
	return &StaticHandler{fs: fs, excluded: excluded}
}

// ServeFile serves the file named by the "filepath" route parameter.
// Directories, excluded and missing files answer 404.
func (h *StaticHandler) ServeFile(c *gin.Context) {
	filePath := c.Param("filepath")

	// Security: prevent path traversal
	if containsDotDot(filePath) {
		c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	name := mfs.Clean(filePath)
	if name == "" || h.isExcluded(name) {
		c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	info, err := h.fs.Stat(name)
	if err != nil {
		h.fail(c, name, err)
		return
	}
	if info.IsDir {
		c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	content, err := h.fs.ReadFile(name)
	if err != nil {
		h.fail(c, name, err)
		return
	}

	c.Header("ETag", fmt.Sprintf(`"%x-%x"`, info.ModTime.UnixNano(), info.Size))
	// ServeContent handles Range, conditional requests, HEAD and the
	// extension-based Content-Type
	http.ServeContent(c.Writer, c.Request, info.Name, info.ModTime, bytes.NewReader(content))
}

func (h *StaticHandler) isExcluded(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if h.excluded(part) {
			return true
		}
	}
	return false
}

func (h *StaticHandler) fail(c *gin.Context, name string, err error) {
	switch {
	case os.IsNotExist(err):
		c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case os.IsPermission(err):
		c.String(http.StatusForbidden, http.StatusText(http.StatusForbidden))
	default:
		log.Printf("Error reading static file %s: %v", name, err)
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func containsDotDot(p string) bool {
	if !strings.Contains(p, "..") {
		return false
	}
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// Mount registers the handler for GET and HEAD under prefix
func (h *StaticHandler) Mount(r gin.IRoutes, prefix string) {
	route := path.Join(prefix, "*filepath")
	r.GET(route, h.ServeFile)
	r.HEAD(route, h.ServeFile)
}
