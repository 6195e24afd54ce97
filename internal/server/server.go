// Package server assembles the gin engine, routes and live reload, and runs
// the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/CageChen/indexserve/internal/config"
	mfs "github.com/CageChen/indexserve/internal/fs"
	"github.com/CageChen/indexserve/internal/handler"
	"github.com/CageChen/indexserve/internal/markdown"
	"github.com/CageChen/indexserve/internal/watcher"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Server serves the index document and the static mount
type Server struct {
	cfg    *config.Config
	fs     mfs.FileSystem
	engine *gin.Engine
	ws     *handler.WSHandler
}

// NewFileSystem returns the asset source selected by the configuration
func NewFileSystem(cfg *config.Config) mfs.FileSystem {
	if cfg.UsesGit() {
		return mfs.NewGitFS(cfg.GitRepo, cfg.GitRef, cfg.StaticDir)
	}
	return mfs.NewLocalFS(cfg.StaticDir)
}

// New validates that the static directory exists and builds the router
func New(cfg *config.Config) (*Server, error) {
	fs := NewFileSystem(cfg)

	info, err := fs.Stat("")
	if err != nil {
		if cfg.UsesGit() {
			return nil, fmt.Errorf("static directory %q does not exist at ref %s", cfg.StaticDir, cfg.GitRef)
		}
		return nil, fmt.Errorf("static directory %q does not exist", cfg.StaticDir)
	}
	if !info.IsDir {
		return nil, fmt.Errorf("static directory %q is not a directory", cfg.StaticDir)
	}

	s := &Server{cfg: cfg, fs: fs}
	if s.liveReload() {
		s.ws = handler.NewWSHandler()
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) liveReload() bool {
	return s.cfg.Watch && !s.cfg.UsesGit()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	if s.cfg.LogRequests {
		r.Use(handler.RequestLogger())
	}
	if s.cfg.CORS {
		r.Use(handler.CORSMiddleware())
	}

	var opts []handler.IndexOption
	if s.cfg.IsMarkdownFile(s.cfg.IndexFile) {
		opts = append(opts, handler.WithMarkdown(markdown.NewParser()))
	}
	if s.ws != nil {
		opts = append(opts, handler.WithLiveReload(s.cfg.ReloadPath))
		r.GET(s.cfg.ReloadPath, s.ws.HandleWS)
	}

	index := handler.NewIndexHandler(s.fs, path.Clean(s.cfg.IndexFile), opts...)
	r.GET("/", index.GetIndex)

	static := handler.NewStaticHandler(s.fs, s.cfg.IsExcluded)
	static.Mount(r, s.cfg.StaticPrefix)

	return r
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.ws != nil {
		w, err := watcher.New(s.cfg.StaticDir, s.cfg.IsExcluded)
		if err != nil {
			log.Printf("Warning: failed to create file watcher: %v", err)
		} else {
			w.OnChange(s.ws.OnFileChange)
			if err := w.Start(); err != nil {
				log.Printf("Warning: failed to start file watcher: %v", err)
			} else {
				log.Printf("Live reload enabled at %s", s.cfg.ReloadPath)
			}
			defer func() { _ = w.Stop() }()
		}
		defer s.ws.Close()
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown
	if s.ws != nil {
		s.ws.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
