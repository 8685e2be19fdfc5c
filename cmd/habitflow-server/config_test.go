package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "habitflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error for a missing file, got %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
tick: 500ms
queue_size: 4
mdns: true
mdns_name: kitchen
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Expected addr :9090, got %q", cfg.Addr)
	}
	if cfg.TickInterval != 500*time.Millisecond {
		t.Errorf("Expected tick 500ms, got %s", cfg.TickInterval)
	}
	if cfg.QueueSize != 4 {
		t.Errorf("Expected queue_size 4, got %d", cfg.QueueSize)
	}
	if !cfg.MDNS || cfg.MDNSName != "kitchen" {
		t.Errorf("Expected mDNS enabled as kitchen, got %v %q", cfg.MDNS, cfg.MDNSName)
	}
	if cfg.DBPath != DefaultConfig().DBPath {
		t.Errorf("Expected default db path, got %q", cfg.DBPath)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "addr: [",
		"zero tick":     "tick: 0s",
		"zero queue":    "queue_size: 0",
		"unknown level": "log_level: loud",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestParseFlagsExplicitFlagsWin(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
db: /var/lib/habitflow.db
log_level: warn
`)

	opts, err := parseFlags([]string{"-config", path, "-addr", ":7000", "-queue", "8"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	cfg := opts.config
	if cfg.Addr != ":7000" {
		t.Errorf("Expected flag addr :7000, got %q", cfg.Addr)
	}
	if cfg.QueueSize != 8 {
		t.Errorf("Expected flag queue 8, got %d", cfg.QueueSize)
	}
	if cfg.DBPath != "/var/lib/habitflow.db" {
		t.Errorf("Expected file db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected file log level warn, got %q", cfg.LogLevel)
	}
	if opts.configPath != path {
		t.Errorf("Expected config path %q, got %q", path, opts.configPath)
	}
}

func TestParseFlagsDefaultsWithoutFile(t *testing.T) {
	opts, err := parseFlags([]string{"-version"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if !opts.showVersion {
		t.Error("Expected showVersion")
	}
	if opts.config != DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", opts.config)
	}
}

func TestParseFlagsRejectsInvalid(t *testing.T) {
	if _, err := parseFlags([]string{"-tick", "0s"}, io.Discard); err == nil {
		t.Error("Expected an error for a zero tick")
	}
	if _, err := parseFlags([]string{"-no-such-flag"}, io.Discard); err == nil {
		t.Error("Expected an error for an unknown flag")
	}
}
