package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModeMemory, cfg.Storage.Mode)
	assert.Equal(t, PolicyEager, cfg.GC.Policy)
	assert.Equal(t, time.Minute, cfg.GC.Interval)
	assert.True(t, cfg.GC.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, ModeMemory, cfg.Storage.Mode)
	assert.Equal(t, PolicyEager, cfg.GC.Policy)
	assert.Equal(t, time.Minute, cfg.GC.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Mode: ModeDurable},
		GC:      GCConfig{Policy: PolicyLRU, Interval: 5 * time.Second},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, ModeDurable, cfg.Storage.Mode)
	assert.Equal(t, PolicyLRU, cfg.GC.Policy)
	assert.Equal(t, 5*time.Second, cfg.GC.Interval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Storage.Mode = "cloud" }},
		{"unknown policy", func(c *Config) { c.GC.Policy = "generational" }},
		{"zero interval", func(c *Config) { c.GC.Interval = 0 }},
		{"negative interval", func(c *Config) { c.GC.Interval = -time.Second }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("storage:\n  mode: memory\ngc:\n  policy: lru\n  interval: 30s\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeMemory, cfg.Storage.Mode)
	assert.Equal(t, PolicyLRU, cfg.GC.Policy)
	assert.Equal(t, 30*time.Second, cfg.GC.Interval)
	assert.True(t, cfg.GC.Enabled, "enabled unless the file says otherwise")
}

func TestLoadDisablesCollector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("gc:\n  policy: lru\n  enabled: false\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.GC.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("gc:\n  policy: lru\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeMemory, cfg.Storage.Mode)
	assert.Equal(t, time.Minute, cfg.GC.Interval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
