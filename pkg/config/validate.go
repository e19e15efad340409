package config

import "fmt"

// Validate checks Config fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *Config) Validate() (warnings []string, err error) {
	// MaxCacheSize
	if c.MaxCacheSize < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"max_cache_size is negative, defaulting to %d", DefaultMaxCacheSize))
		c.MaxCacheSize = DefaultMaxCacheSize
	}
	if c.MaxCacheSize == 0 {
		c.MaxCacheSize = DefaultMaxCacheSize
	}

	// CleanupInterval
	if c.CleanupInterval < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup_interval is negative, defaulting to %v", DefaultCleanupInterval))
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}

	// DebounceDelay
	if c.DebounceDelay < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"debounce_delay is negative, defaulting to %v", DefaultDebounceDelay))
		c.DebounceDelay = DefaultDebounceDelay
	}
	if c.DebounceDelay == 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}

	// WaitPollInterval
	if c.WaitPollInterval <= 0 {
		c.WaitPollInterval = DefaultWaitPollInterval
	}

	// WaitTimeout
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}

	return warnings, nil
}
