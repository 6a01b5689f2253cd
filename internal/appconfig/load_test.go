package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("unexpected config version: %d", cfg.ConfigVersion)
	}
	if cfg.Server.URL == "" || cfg.Events.BufferDepth <= 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsWrongConfigVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "config_version: 99\nserver:\n  url: http://host:8080/api\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "config_version: 1\nserver:\n  url: http://fleet:9000/api\n  timeout_seconds: 3\ntabs:\n  list_title: Hosts\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.URL != "http://fleet:9000/api" || cfg.Server.TimeoutSeconds != 3 {
		t.Fatalf("server config not applied: %+v", cfg.Server)
	}
	if cfg.Tabs.ListTitle != "Hosts" {
		t.Fatalf("tabs config not applied: %+v", cfg.Tabs)
	}
	// Untouched sections keep defaults.
	if cfg.Events.BufferDepth != 256 {
		t.Fatalf("defaults lost: %+v", cfg.Events)
	}
}

func TestLoadRejectsInvalidServerURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "config_version: 1\nserver:\n  url: not-a-url\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid server url")
	}
}

func TestLoadExpandsEnvInStateDir(t *testing.T) {
	t.Setenv("FLEETWATCH_TEST_DIR", "/tmp/fleetwatch-test")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "config_version: 1\nserver:\n  url: http://host:8080/api\nstate_dir: $FLEETWATCH_TEST_DIR/state\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.StateDir != "/tmp/fleetwatch-test/state" {
		t.Fatalf("env not expanded: %q", cfg.StateDir)
	}
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := WriteDefault(path, false); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("forced write failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("unexpected version in written config: %d", cfg.ConfigVersion)
	}
}
