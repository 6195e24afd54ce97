// Package handler provides the HTTP handlers for the root document, the
// static asset mount and live reload.
package handler

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	mfs "github.com/CageChen/indexserve/internal/fs"
	"github.com/CageChen/indexserve/internal/markdown"
	"github.com/gin-gonic/gin"
)

const htmlContentType = "text/html; charset=utf-8"

// IndexHandler serves the index document on the root route
type IndexHandler struct {
	fs         mfs.FileSystem
	name       string
	parser     *markdown.Parser
	reloadPath string
}

// IndexOption configures an IndexHandler
type IndexOption func(*IndexHandler)

// WithMarkdown renders the index document from Markdown before serving it
func WithMarkdown(p *markdown.Parser) IndexOption {
	return func(h *IndexHandler) { h.parser = p }
}

// WithLiveReload injects a client that reloads the page on messages from
// the WebSocket endpoint at path
func WithLiveReload(path string) IndexOption {
	return func(h *IndexHandler) { h.reloadPath = path }
}

// NewIndexHandler creates a handler serving the document name from fs
func NewIndexHandler(fs mfs.FileSystem, name string, opts ...IndexOption) *IndexHandler {
	h := &IndexHandler{fs: fs, name: name}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetIndex reads the index document on every request and returns it as HTML.
// Any read failure is a server error.
func (h *IndexHandler) GetIndex(c *gin.Context) {
	content, err := h.fs.ReadFile(h.name)
	if err != nil {
		log.Printf("Error reading index %s: %v", h.name, err)
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	if h.parser != nil {
		content, err = h.parser.RenderPage(content)
		if err != nil {
			log.Printf("Error rendering index %s: %v", h.name, err)
			c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
	}

	if h.reloadPath != "" {
		content = injectReloadScript(content, h.reloadPath)
	}

	c.Data(http.StatusOK, htmlContentType, content)
}

const reloadScript = `<script>(function(){` +
	`var p=location.protocol==="https:"?"wss:":"ws:";` +
	`var ws=new WebSocket(p+"//"+location.host+"%s");` +
	`ws.onmessage=function(){location.reload();};` +
	`})();</script>`

// injectReloadScript inserts the reload client before the last </body>, or
// appends it when the document has none
func injectReloadScript(content []byte, path string) []byte {
	script := []byte(fmt.Sprintf(reloadScript, path))

	idx := max(bytes.LastIndex(content, []byte("</body>")), bytes.LastIndex(content, []byte("</BODY>")))
	if idx < 0 {
		return append(content, script...)
	}

	out := make([]byte, 0, len(content)+len(script))
	out = append(out, content[:idx]...)
	out = append(out, script...)
	out = append(out, content[idx:]...)
	return out
}
