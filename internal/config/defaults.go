package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// setDefaults seeds v with values that let a sync node start with no
// config file at all, persisting to a LevelDB database under ./trie-data.
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", string(BackendLevelDB))
	v.SetDefault("storage.path", "./trie-data")
	v.SetDefault("storage.compress", false)
	v.SetDefault("storage.cache_size", 4096)
	v.SetDefault("storage.drain_interval_ms", 200)
	v.SetDefault("storage.drain_batch", 4096)

	v.SetDefault("sync.batch_size", 64)
	v.SetDefault("sync.max_concurrent_fetches", 8)
	v.SetDefault("sync.request_timeout_ms", 5000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Default returns a Config built entirely from defaults, useful for
// tests and for a first run before any file exists on disk.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static and known-good; a failure here means the
		// struct tags and setDefaults have drifted apart.
		panic(fmt.Sprintf("config: default configuration failed to unmarshal: %v", err))
	}
	return &cfg
}
