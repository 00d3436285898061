package config

import (
	"path/filepath"
	"testing"
)

func TestNewUsesExplicitDir(t *testing.T) {
	dir := t.TempDir()
	cfg := New(dir)

	if cfg.Dir != dir {
		t.Errorf("expected dir %q, got %q", dir, cfg.Dir)
	}
	if cfg.StatePath() != filepath.Join(dir, StateFile) {
		t.Errorf("unexpected state path %q", cfg.StatePath())
	}
	if cfg.LogPath() != filepath.Join(dir, LogFile) {
		t.Errorf("unexpected log path %q", cfg.LogPath())
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvWSURL, "")
	t.Setenv(EnvAIURL, "")

	cfg := New(t.TempDir())
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("expected %q, got %q", DefaultAPIURL, cfg.APIURL)
	}
	if cfg.WSURL != DefaultWSURL {
		t.Errorf("expected %q, got %q", DefaultWSURL, cfg.WSURL)
	}
	if cfg.AIURL != DefaultAIURL {
		t.Errorf("expected %q, got %q", DefaultAIURL, cfg.AIURL)
	}
}

func TestNewEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://api.example.test")
	t.Setenv(EnvWSURL, "wss://api.example.test/ws")
	t.Setenv(EnvAIURL, "https://ai.example.test")

	cfg := New(t.TempDir())
	if cfg.APIURL != "https://api.example.test" {
		t.Errorf("api url not overridden: %q", cfg.APIURL)
	}
	if cfg.WSURL != "wss://api.example.test/ws" {
		t.Errorf("ws url not overridden: %q", cfg.WSURL)
	}
	if cfg.AIURL != "https://ai.example.test" {
		t.Errorf("ai url not overridden: %q", cfg.AIURL)
	}
}

func TestDefaultConfigDirHonoursXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if got := DefaultConfigDir(); got != filepath.Join(xdg, AppName) {
		t.Errorf("expected %q, got %q", filepath.Join(xdg, AppName), got)
	}
}

func TestConfigDirFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	if got := New("").Dir; got != dir {
		t.Errorf("expected %q, got %q", dir, got)
	}
}
