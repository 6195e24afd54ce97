package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mfs "github.com/CageChen/indexserve/internal/fs"
	"github.com/CageChen/indexserve/internal/markdown"
	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// setupSite writes files (slash-separated names) into a temp dir
func setupSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func get(r http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetIndex(t *testing.T) {
	root := setupSite(t, map[string]string{"index.html": "<h1>hi</h1>"})
	r := gin.New()
	r.GET("/", NewIndexHandler(mfs.NewLocalFS(root), "index.html").GetIndex)

	w := get(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "<h1>hi</h1>" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestGetIndexMissing(t *testing.T) {
	root := setupSite(t, nil)
	r := gin.New()
	r.GET("/", NewIndexHandler(mfs.NewLocalFS(root), "index.html").GetIndex)

	w := get(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestGetIndexMarkdown(t *testing.T) {
	root := setupSite(t, map[string]string{"index.md": "# Welcome\n\nbody text\n"})
	r := gin.New()
	h := NewIndexHandler(mfs.NewLocalFS(root), "index.md", WithMarkdown(markdown.NewParser()))
	r.GET("/", h.GetIndex)

	w := get(r, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<title>Welcome</title>") {
		t.Errorf("expected rendered page, got %s", w.Body.String())
	}
}

func TestInjectReloadScript(t *testing.T) {
	out := string(injectReloadScript([]byte("<html><body><p>x</p></body></html>"), "/_livereload"))
	if !strings.Contains(out, `"/_livereload"`) {
		t.Fatalf("expected reload path in script, got %s", out)
	}
	if !strings.HasSuffix(out, "</script></body></html>") {
		t.Errorf("expected script before </body>, got %s", out)
	}

	out = string(injectReloadScript([]byte("<p>fragment</p>"), "/_livereload"))
	if !strings.HasPrefix(out, "<p>fragment</p><script>") {
		t.Errorf("expected script appended, got %s", out)
	}
}

func newStaticRouter(root string, excluded func(string) bool) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	NewStaticHandler(mfs.NewLocalFS(root), excluded).Mount(r, "/static")
	return r
}

func TestServeFile(t *testing.T) {
	root := setupSite(t, map[string]string{
		"css/app.css": "body { color: red; }",
		"app.js":      "console.log('hi')",
	})
	r := newStaticRouter(root, nil)

	w := get(r, http.MethodGet, "/static/css/app.css", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "body { color: red; }" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("expected text/css, got %q", ct)
	}
	if w.Header().Get("ETag") == "" || w.Header().Get("Last-Modified") == "" {
		t.Error("expected validators to be set")
	}

	w = get(r, http.MethodGet, "/static/app.js", nil)
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("expected javascript content type, got %q", ct)
	}
}

func TestServeFileNotFound(t *testing.T) {
	root := setupSite(t, map[string]string{"css/app.css": "x", ".env": "SECRET=1"})
	r := newStaticRouter(root, func(name string) bool { return strings.HasPrefix(name, ".") })

	tests := []struct {
		name   string
		target string
	}{
		{"missing file", "/static/missing.js"},
		{"directory", "/static/css"},
		{"directory slash", "/static/css/"},
		{"mount root", "/static/"},
		{"excluded", "/static/.env"},
		{"traversal", "/static/../go.mod"},
		{"encoded traversal", "/static/%2e%2e/%2e%2e/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, http.MethodGet, tt.target, nil)
			if w.Code != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", tt.target, w.Code)
			}
		})
	}
}

func TestServeFileRange(t *testing.T) {
	root := setupSite(t, map[string]string{"data.txt": "0123456789"})
	r := newStaticRouter(root, nil)

	w := get(r, http.MethodGet, "/static/data.txt", http.Header{"Range": {"bytes=2-5"}})
	if w.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", w.Code)
	}
	if w.Body.String() != "2345" {
		t.Errorf("unexpected range body %q", w.Body.String())
	}
}

func TestServeFileConditional(t *testing.T) {
	root := setupSite(t, map[string]string{"data.txt": "0123456789"})
	r := newStaticRouter(root, nil)

	first := get(r, http.MethodGet, "/static/data.txt", nil)
	etag := first.Header().Get("ETag")

	w := get(r, http.MethodGet, "/static/data.txt", http.Header{"If-None-Match": {etag}})
	if w.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", w.Code)
	}
}

func TestServeFileHeadAndMethods(t *testing.T) {
	root := setupSite(t, map[string]string{"data.txt": "0123456789"})
	r := newStaticRouter(root, nil)

	w := get(r, http.MethodHead, "/static/data.txt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for HEAD, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty HEAD body, got %q", w.Body.String())
	}

	w = get(r, http.MethodPost, "/static/data.txt", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", w.Code)
	}
}

func TestContainsDotDot(t *testing.T) {
	for p, want := range map[string]bool{
		"/a/../b":    true,
		"/..":        true,
		"\\..\\x":    true,
		"/a..b/c":    false,
		"/file..txt": false,
		"/plain":     false,
	} {
		if got := containsDotDot(p); got != want {
			t.Errorf("containsDotDot(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := get(r, http.MethodOptions, "/", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}

	w = get(r, http.MethodGet, "/", nil)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}
