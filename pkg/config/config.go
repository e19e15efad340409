package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate.
const (
	DefaultMaxCacheSize     = 100
	DefaultCleanupInterval  = 30 * time.Second
	DefaultDebounceDelay    = 16 * time.Millisecond
	DefaultWaitPollInterval = 100 * time.Millisecond
	DefaultWaitTimeout      = 10 * time.Second
)

// Config holds the tunables of a lookup engine instance.
type Config struct {
	EnableLogging      bool          `yaml:"enable_logging,omitempty"`
	AutoCleanup        *bool         `yaml:"auto_cleanup,omitempty"`          // nil = enabled
	CleanupInterval    time.Duration `yaml:"cleanup_interval,omitempty"`      // periodic reaper sweep interval
	MaxCacheSize       int           `yaml:"max_cache_size,omitempty"`        // cache entry cap (FIFO eviction beyond it)
	DebounceDelay      time.Duration `yaml:"debounce_delay,omitempty"`        // mutation batch collapse window
	EnableSmartCaching *bool         `yaml:"enable_smart_caching,omitempty"`  // nil = enabled; gates the selector-kind watcher
	WaitPollInterval   time.Duration `yaml:"wait_poll_interval,omitempty"`    // WaitFor polling granularity
	WaitTimeout        time.Duration `yaml:"wait_timeout,omitempty"`          // default WaitFor timeout
}

// Default returns a Config with every field at its default.
func Default() Config {
	var c Config
	c.Validate()
	return c
}

// GetEffectiveAutoCleanup determines whether the periodic reaper runs.
func (c Config) GetEffectiveAutoCleanup() bool {
	if c.AutoCleanup != nil {
		return *c.AutoCleanup
	}
	return true
}

// GetEffectiveSmartCaching determines whether selector-kind results are
// cached and watched at all.
func (c Config) GetEffectiveSmartCaching() bool {
	if c.EnableSmartCaching != nil {
		return *c.EnableSmartCaching
	}
	return true
}

// Load reads and parses a Config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
