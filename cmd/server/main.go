// Package main is the entry point for the indexserve server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/CageChen/indexserve/internal/config"
	"github.com/CageChen/indexserve/internal/server"
	"github.com/gin-gonic/gin"
)

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "init") {
		command = args[0]
		args = args[1:]
	}

	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if command == "init" {
		if err := cfg.Save(); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Wrote config to %s", cfg.GetConfigFilePath())
		return
	}

	gin.SetMode(gin.ReleaseMode)

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	log.Printf("indexserve - static file server")
	log.Printf("Config file: %s", cfg.GetConfigFilePath())
	if cfg.UsesGit() {
		log.Printf("Serving %s from %s (git ref: %s)", cfg.StaticDir, cfg.GitRepo, cfg.GitRef)
		if cfg.Watch {
			log.Printf("Warning: live reload is not available for git refs")
		}
	} else {
		abs, err := filepath.Abs(cfg.StaticDir)
		if err != nil {
			abs = cfg.StaticDir
		}
		log.Printf("Serving %s", abs)
	}
	log.Printf("  %s -> %s", "/", cfg.IndexFile)
	log.Printf("  %s/* -> %s", cfg.StaticPrefix, cfg.StaticDir)
	log.Printf("Server starting at: %s", cfg.URL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Open {
		go openBrowser(cfg.URL())
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Printf("Server stopped")
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		log.Printf("Warning: failed to open browser: %v", err)
	}
}
