// Package config resolves the configuration directory and service endpoints.
package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application directory name.
	AppName = "taskboard"

	// StateFile is the DuckDB file holding persisted client state.
	StateFile = "state.duckdb"

	// LogFile is where the TUI writes its log.
	LogFile = "taskboard.log"

	DefaultAPIURL = "http://localhost:8080"
	DefaultWSURL  = "ws://localhost:8080/ws"
	DefaultAIURL  = "http://localhost:8080/ai"
)

// Environment overrides, applied before command line flags.
const (
	EnvAPIURL    = "TASKBOARD_API_URL"
	EnvWSURL     = "TASKBOARD_WS_URL"
	EnvAIURL     = "TASKBOARD_AI_URL"
	EnvConfigDir = "TASKBOARD_CONFIG_DIR"
)

// Config holds configuration paths and endpoints.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// APIURL is the base URL of the task REST API.
	APIURL string

	// WSURL is the push update channel endpoint.
	WSURL string

	// AIURL is the base URL of the suggestion service.
	AIURL string

	// Debug enables debug logging.
	Debug bool
}

// New creates a Config from defaults and environment overrides.
// If configDir is empty, uses TASKBOARD_CONFIG_DIR, then XDG_CONFIG_HOME/taskboard
// or $HOME/.config/taskboard.
func New(configDir string) *Config {
	dir := configDir
	if dir == "" {
		dir = os.Getenv(EnvConfigDir)
	}
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{
		Dir:    dir,
		APIURL: envOr(EnvAPIURL, DefaultAPIURL),
		WSURL:  envOr(EnvWSURL, DefaultWSURL),
		AIURL:  envOr(EnvAIURL, DefaultAIURL),
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// StatePath returns the path of the local state database.
func (c *Config) StatePath() string {
	return filepath.Join(c.Dir, StateFile)
}

// LogPath returns the path of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir, LogFile)
}

// EnsureDir creates the config directory with mode 0700 if it doesn't exist.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
