package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"telegram": {"token": "123:abc", "poll_timeout": "15s"},
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"storage": {"driver": "file", "path": "./members.db", "strict_load": false},
		"roster": {"batch_size": 10, "flush_every": "5m"}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("Token = %q", cfg.Telegram.Token)
	}
	if cfg.Storage.StrictLoad == nil || *cfg.Storage.StrictLoad {
		t.Fatalf("StrictLoad = %v, want explicit false", cfg.Storage.StrictLoad)
	}
	if cfg.Roster.BatchSize != 10 {
		t.Fatalf("BatchSize = %d", cfg.Roster.BatchSize)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get() does not return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
logging:
  level: info
  console: true
  file:
    enabled: true
    path: ./bot.log
storage:
  path: ./members.db
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Logging.File.Enabled || cfg.Logging.File.Path != "./bot.log" {
		t.Fatalf("logging file config = %+v", cfg.Logging.File)
	}
	// Omitted strict_load stays nil so callers can default it to true.
	if cfg.Storage.StrictLoad != nil {
		t.Fatalf("StrictLoad = %v, want nil", cfg.Storage.StrictLoad)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "x", "typo_field": 1}, "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}}, "storage": {}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 42)
	if err != nil || d != 42 {
		t.Fatalf("empty: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", 0); err == nil {
		t.Fatal("expected error for junk duration")
	}
	if _, err := ParseDurationOrDefault("x", "-5s", 0); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
