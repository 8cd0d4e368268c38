package config

import (
	"path/filepath"
	"testing"
)

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("want default config to pass validation, got: %v", err)
	}
}

func TestLoadWithoutConfigFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Command.SocketPath == "" {
		t.Error("want a default socket path")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Command.SocketPath = "/tmp/custom.sock"
	cfg.Worker.Count = 3

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Command.SocketPath != "/tmp/custom.sock" {
		t.Errorf("want socket path to round-trip, got %q", loaded.Command.SocketPath)
	}
	if loaded.Worker.Count != 3 {
		t.Errorf("want worker count to round-trip, got %d", loaded.Worker.Count)
	}
}

func TestMustLoadWithMissingExplicitPathFails(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("want an error for an explicit, nonexistent config path")
	}
}
