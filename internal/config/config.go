// Package config loads the settings that govern a sync node's storage
// backend, batching behavior, and logging, the way the rest of this
// stack loads its own settings: viper-backed, TOML on disk, environment
// overrides on top.
package config

import "fmt"

// StorageBackend names which nodesink implementation to use.
type StorageBackend string

const (
	BackendLevelDB StorageBackend = "leveldb"
	BackendPebble  StorageBackend = "pebble"
	BackendMemory  StorageBackend = "memory"
)

// StorageConfig configures the persistence layer a SHAMap drains into.
type StorageConfig struct {
	Backend     StorageBackend `toml:"backend" mapstructure:"backend"`
	Path        string         `toml:"path" mapstructure:"path"`
	Compress    bool           `toml:"compress" mapstructure:"compress"`
	CacheSize   int            `toml:"cache_size" mapstructure:"cache_size"`
	DrainMillis int            `toml:"drain_interval_ms" mapstructure:"drain_interval_ms"`
	DrainBatch  int            `toml:"drain_batch" mapstructure:"drain_batch"`
}

// SyncConfig configures the pull-based sync loop between a destination
// and its chosen sources.
type SyncConfig struct {
	// BatchSize caps how many missing nodes one GetMissingNodes /
	// GetNodeFat round trip asks for at once.
	BatchSize int `toml:"batch_size" mapstructure:"batch_size"`

	// MaxConcurrentFetches bounds how many GetNodeFat calls run at once
	// against a single source.
	MaxConcurrentFetches int `toml:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`

	// RequestTimeoutMillis bounds how long the sync loop waits for one
	// GetNodeFat round trip before treating it as lost and re-requesting
	// on the next pass.
	RequestTimeoutMillis int `toml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
}

// LogConfig configures the standard logger every component shares.
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // "console" or "json"
}

// Config is the complete configuration for a sync node.
type Config struct {
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	Sync    SyncConfig    `toml:"sync" mapstructure:"sync"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`

	configPath string
}

// GetConfigPath returns the file Config was loaded from, or "" if it was
// built entirely from defaults.
func (c *Config) GetConfigPath() string { return c.configPath }

// Validate rejects a configuration no component could run against.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLevelDB, BackendPebble, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path is required for backend %q", c.Storage.Backend)
	}
	if c.Storage.DrainMillis <= 0 {
		return fmt.Errorf("config: storage.drain_interval_ms must be positive")
	}
	if c.Storage.DrainBatch <= 0 {
		return fmt.Errorf("config: storage.drain_batch must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("config: sync.batch_size must be positive")
	}
	if c.Sync.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("config: sync.max_concurrent_fetches must be positive")
	}
	if c.Sync.RequestTimeoutMillis <= 0 {
		return fmt.Errorf("config: sync.request_timeout_ms must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}
