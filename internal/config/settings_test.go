package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))
	t.Setenv(EnvToken, "")
	t.Setenv(EnvUserID, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL() != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected base url: %q", cfg.BaseURL())
	}
	if cfg.DedupWindow() != 2*time.Second {
		t.Fatalf("unexpected dedup window: %v", cfg.DedupWindow())
	}
	if cfg.CacheBackend() != CacheBackendBbolt {
		t.Fatalf("unexpected cache backend: %q", cfg.CacheBackend())
	}
	if cfg.Token() != "" || cfg.UserID() != "" {
		t.Fatalf("expected no identity by default")
	}
}

func TestLoadFromTOML(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("HOME", home)
	t.Setenv(EnvToken, "")
	t.Setenv(EnvUserID, "")

	dataDir := filepath.Join(home, ".lexchat")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := []byte(`
[api]
base_url = "api.example.test:9000/"
request_timeout_seconds = 5
user_type = "lawyer"

[cache]
backend = "sqlite"
path = "local.sqlite"

[chat]
dedup_window_ms = 500

[identity]
token = "file-token"
user_id = "u-1"
`)
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL() != "http://api.example.test:9000" {
		t.Fatalf("unexpected base url: %q", cfg.BaseURL())
	}
	if cfg.RequestTimeout() != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout())
	}
	if cfg.UserType() != "lawyer" {
		t.Fatalf("unexpected user type: %q", cfg.UserType())
	}
	if cfg.CacheBackend() != CacheBackendSQLite {
		t.Fatalf("unexpected backend: %q", cfg.CacheBackend())
	}
	path, err := cfg.CachePath()
	if err != nil {
		t.Fatalf("CachePath: %v", err)
	}
	if want := filepath.Join(dataDir, "local.sqlite"); path != want {
		t.Fatalf("unexpected cache path: got=%q want=%q", path, want)
	}
	if cfg.DedupWindow() != 500*time.Millisecond {
		t.Fatalf("unexpected dedup window: %v", cfg.DedupWindow())
	}
	if cfg.Token() != "file-token" || cfg.UserID() != "u-1" {
		t.Fatalf("unexpected identity: %q %q", cfg.Token(), cfg.UserID())
	}
}

func TestEnvOverridesIdentity(t *testing.T) {
	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvUserID, "env-user")
	cfg := DefaultConfig()
	cfg.Identity.Token = "file-token"
	if cfg.Token() != "env-token" || cfg.UserID() != "env-user" {
		t.Fatalf("expected env overrides, got %q %q", cfg.Token(), cfg.UserID())
	}
}

func TestInvalidTOMLReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[api\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadFromPath(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCacheBackendAliases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "off"
	if cfg.CacheBackend() != CacheBackendNone {
		t.Fatalf("expected none backend, got %q", cfg.CacheBackend())
	}
	cfg.Cache.Backend = "JSON"
	if cfg.CacheBackend() != CacheBackendFile {
		t.Fatalf("expected file backend, got %q", cfg.CacheBackend())
	}
}
