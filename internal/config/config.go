// Package config manages YAML-based configuration and CLI flags for the server.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for indexserve
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Directory holding the static assets, relative to the working directory
	StaticDir string `yaml:"static_dir"`
	// URL prefix the static directory is mounted under
	StaticPrefix string `yaml:"static_prefix"`
	// Document served on "/", relative to StaticDir
	IndexFile string `yaml:"index_file"`

	// When GitRef is set, assets are read from that ref of GitRepo instead of disk
	GitRepo string `yaml:"git_repo,omitempty"`
	GitRef  string `yaml:"git_ref,omitempty"`

	Exclude []string `yaml:"exclude,omitempty"`

	Watch       bool   `yaml:"watch"`
	ReloadPath  string `yaml:"reload_path"`
	Open        bool   `yaml:"open"`
	CORS        bool   `yaml:"cors"`
	LogRequests bool   `yaml:"log_requests"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         8000,
		StaticDir:    "static",
		StaticPrefix: "/static",
		IndexFile:    "index.html",
		GitRepo:      ".",
		ReloadPath:   "/_livereload",
		LogRequests:  true,
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/indexserve"
	}
	return filepath.Join(home, ".config", "indexserve")
}

// GetConfigPath returns the full path to the global config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load builds the configuration from defaults, the config file and the given
// command line arguments (without the program name or subcommand).
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	fset := flag.NewFlagSet("indexserve", flag.ContinueOnError)

	// Sentinel values detect whether a flag was set
	host := fset.String("host", "", "Listen address")
	port := fset.Int("port", 0, "HTTP server port")
	dir := fset.String("dir", "", "Static assets directory")
	prefix := fset.String("prefix", "", "URL prefix for static assets")
	index := fset.String("index", "", "Document served on /, relative to the static directory")
	gitRepo := fset.String("git-repo", "", "Git repository to read assets from")
	gitRef := fset.String("git-ref", "", "Git ref to read assets from")
	configFile := fset.String("config", "", "Configuration file path")

	fset.StringVar(dir, "d", "", "Static assets directory (shorthand)")

	// Bool flags are applied only when they appear on the command line
	watch := fset.Bool("watch", false, "Enable live reload")
	open := fset.Bool("open", false, "Open browser on startup")
	cors := fset.Bool("cors", false, "Send permissive CORS headers")
	logRequests := fset.Bool("log-requests", true, "Log every request")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if fset.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fset.Arg(0))
	}

	// Determine config file path
	var cfgPath string
	if *configFile != "" {
		cfgPath = *configFile
	} else {
		// Try ~/.config/indexserve/config.yaml first
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("indexserve.yaml"); err == nil {
			cfgPath = "indexserve.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil {
			if *configFile != "" {
				return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
			}
			log.Printf("Warning: ignoring config file %s: %v", cfgPath, err)
		}
		cfg.configPath = cfgPath
	} else {
		// Set default config path for saving
		cfg.configPath = GetConfigPath()
	}

	// Command line flags override config file (only if explicitly set)
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dir != "" {
		cfg.StaticDir = *dir
	}
	if *prefix != "" {
		cfg.StaticPrefix = *prefix
	}
	if *index != "" {
		cfg.IndexFile = *index
	}
	if *gitRepo != "" {
		cfg.GitRepo = *gitRepo
	}
	if *gitRef != "" {
		cfg.GitRef = *gitRef
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "watch":
			cfg.Watch = *watch
		case "open":
			cfg.Open = *open
		case "cors":
			cfg.CORS = *cors
		case "log-requests":
			cfg.LogRequests = *logRequests
		}
	})

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize trims trailing slashes from URL paths and fills empty fields with defaults
func (c *Config) normalize() {
	if c.StaticPrefix != "/" {
		c.StaticPrefix = strings.TrimRight(c.StaticPrefix, "/")
	}
	if c.ReloadPath != "/" {
		c.ReloadPath = strings.TrimRight(c.ReloadPath, "/")
	}
	if c.GitRepo == "" {
		c.GitRepo = "."
	}
	c.IndexFile = filepath.ToSlash(c.IndexFile)
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StaticDir == "" {
		return errors.New("static_dir must not be empty")
	}
	if !strings.HasPrefix(c.StaticPrefix, "/") || c.StaticPrefix == "/" {
		return fmt.Errorf("invalid static_prefix %q: must start with / and not be /", c.StaticPrefix)
	}
	if c.IndexFile == "" {
		return errors.New("index_file must not be empty")
	}
	clean := path.Clean(c.IndexFile)
	if strings.HasPrefix(c.IndexFile, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid index_file %q: must be inside the static directory", c.IndexFile)
	}
	if c.Watch {
		if !strings.HasPrefix(c.ReloadPath, "/") || c.ReloadPath == "/" {
			return fmt.Errorf("invalid reload_path %q", c.ReloadPath)
		}
		if c.ReloadPath == c.StaticPrefix || strings.HasPrefix(c.ReloadPath, c.StaticPrefix+"/") {
			return fmt.Errorf("reload_path %q collides with static_prefix %q", c.ReloadPath, c.StaticPrefix)
		}
	}
	return nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save writes the current configuration to the config file
func (c *Config) Save() error {
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// Address returns the host:port the server listens on
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the address as a browsable URL
func (c *Config) URL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// IsExcluded checks if a path should be hidden from the static mount
func (c *Config) IsExcluded(path string) bool {
	base := filepath.Base(path)
	for _, exclude := range c.Exclude {
		if matched, _ := filepath.Match(exclude, base); matched {
			return true
		}
	}
	return false
}

// IsMarkdownFile checks if a file has a markdown extension
func (c *Config) IsMarkdownFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// UsesGit reports whether assets are read from a git ref
func (c *Config) UsesGit() bool {
	return c.GitRef != ""
}
