package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestValidateAppliesDefaults(t *testing.T) {
	var c Config
	warnings, err := c.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, DefaultMaxCacheSize, c.MaxCacheSize)
	assert.Equal(t, DefaultCleanupInterval, c.CleanupInterval)
	assert.Equal(t, DefaultDebounceDelay, c.DebounceDelay)
	assert.Equal(t, DefaultWaitPollInterval, c.WaitPollInterval)
	assert.Equal(t, DefaultWaitTimeout, c.WaitTimeout)
}

func TestValidateWarnsOnNegatives(t *testing.T) {
	c := Config{MaxCacheSize: -1, CleanupInterval: -time.Second, DebounceDelay: -time.Millisecond}
	warnings, err := c.Validate()
	require.NoError(t, err)
	assert.Len(t, warnings, 3)
	assert.Equal(t, DefaultMaxCacheSize, c.MaxCacheSize)
	assert.Equal(t, DefaultCleanupInterval, c.CleanupInterval)
	assert.Equal(t, DefaultDebounceDelay, c.DebounceDelay)
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	c := Config{
		MaxCacheSize:    7,
		CleanupInterval: time.Minute,
		DebounceDelay:   50 * time.Millisecond,
	}
	warnings, err := c.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 7, c.MaxCacheSize)
	assert.Equal(t, time.Minute, c.CleanupInterval)
	assert.Equal(t, 50*time.Millisecond, c.DebounceDelay)
}

func TestGetEffectiveAutoCleanup(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected bool
	}{
		{"nil defaults to enabled", Config{}, true},
		{"explicit true", Config{AutoCleanup: boolPtr(true)}, true},
		{"explicit false", Config{AutoCleanup: boolPtr(false)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.GetEffectiveAutoCleanup())
		})
	}
}

func TestGetEffectiveSmartCaching(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected bool
	}{
		{"nil defaults to enabled", Config{}, true},
		{"explicit true", Config{EnableSmartCaching: boolPtr(true)}, true},
		{"explicit false", Config{EnableSmartCaching: boolPtr(false)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.GetEffectiveSmartCaching())
		})
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultMaxCacheSize, c.MaxCacheSize)
	assert.True(t, c.GetEffectiveAutoCleanup())
	assert.True(t, c.GetEffectiveSmartCaching())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
enable_logging: true
auto_cleanup: false
cleanup_interval: 5s
max_cache_size: 25
debounce_delay: 32ms
enable_smart_caching: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.EnableLogging)
	assert.False(t, cfg.GetEffectiveAutoCleanup())
	assert.Equal(t, 5*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 25, cfg.MaxCacheSize)
	assert.Equal(t, 32*time.Millisecond, cfg.DebounceDelay)
	assert.False(t, cfg.GetEffectiveSmartCaching())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
