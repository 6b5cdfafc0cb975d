package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on default config: %v", err)
	}
	if cfg.Storage.Backend != BackendLevelDB {
		t.Fatalf("default backend = %q, want %q", cfg.Storage.Backend, BackendLevelDB)
	}
}

func TestLoadWithMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.BatchSize != 64 {
		t.Fatalf("BatchSize = %d, want 64", cfg.Sync.BatchSize)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triesync.toml")
	contents := `
[storage]
backend = "pebble"
path = "/tmp/whatever"

[sync]
batch_size = 128
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != BackendPebble {
		t.Fatalf("Backend = %q, want %q", cfg.Storage.Backend, BackendPebble)
	}
	if cfg.Sync.BatchSize != 128 {
		t.Fatalf("BatchSize = %d, want 128", cfg.Sync.BatchSize)
	}
	if cfg.GetConfigPath() != path {
		t.Fatalf("GetConfigPath() = %q, want %q", cfg.GetConfigPath(), path)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown storage backend")
	}
}

func TestValidateRequiresPathForNonMemoryBackend(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a missing storage path")
	}
}

func TestValidateAllowsMemoryBackendWithoutPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendMemory
	cfg.Storage.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with memory backend: %v", err)
	}
}
