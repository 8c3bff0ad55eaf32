// Package config provides configuration for the local persistence layer.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syntrixbase/localstore/internal/logging"
)

// StorageMode selects the persistence backing.
type StorageMode string

const (
	// ModeMemory keeps the whole cache in process memory.
	ModeMemory StorageMode = "memory"
	// ModeDurable requests disk-backed persistence. This build does not
	// provide it; construction is rejected.
	ModeDurable StorageMode = "durable"
)

// GCPolicy selects the garbage collection policy.
type GCPolicy string

const (
	// PolicyEager evicts a document the moment its last reference is
	// released, synchronously at transaction commit.
	PolicyEager GCPolicy = "eager"
	// PolicyLRU defers eviction to periodic sweeps driven by a collector.
	PolicyLRU GCPolicy = "lru"
)

// Config holds the persistence layer configuration.
type Config struct {
	Storage StorageConfig  `yaml:"storage"`
	GC      GCConfig       `yaml:"gc"`
	Logging logging.Config `yaml:"logging"`
}

// StorageConfig selects and parameterizes the storage backing.
type StorageConfig struct {
	// Mode is the persistence backing. Defaults to "memory".
	Mode StorageMode `yaml:"mode"`
}

// GCConfig parameterizes garbage collection.
type GCConfig struct {
	// Policy is the collection policy. Defaults to "eager".
	Policy GCPolicy `yaml:"policy"`

	// Interval is the delay between LRU collector runs. Ignored under the
	// eager policy. Defaults to 1m.
	Interval time.Duration `yaml:"interval"`

	// Enabled starts the LRU collector loop at Open. Ignored under the
	// eager policy, which collects synchronously at commit. Defaults to
	// true; a disabled collector can still be started by hand through the
	// scheduler.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default persistence configuration.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{Mode: ModeMemory},
		GC: GCConfig{
			Policy:   PolicyEager,
			Interval: time.Minute,
			Enabled:  true,
		},
		Logging: logging.DefaultConfig(),
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Storage.Mode == "" {
		c.Storage.Mode = defaults.Storage.Mode
	}
	if c.GC.Policy == "" {
		c.GC.Policy = defaults.GC.Policy
	}
	if c.GC.Interval <= 0 {
		c.GC.Interval = defaults.GC.Interval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// Validate returns an error if the configuration is invalid. Mode
// validation is structural only; whether a mode is available is decided by
// the persistence factory.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case ModeMemory, ModeDurable:
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", ModeMemory, ModeDurable, c.Storage.Mode)
	}
	switch c.GC.Policy {
	case PolicyEager, PolicyLRU:
	default:
		return fmt.Errorf("gc.policy must be %q or %q, got %q", PolicyEager, PolicyLRU, c.GC.Policy)
	}
	if c.GC.Interval <= 0 {
		return fmt.Errorf("gc.interval must be positive, got %s", c.GC.Interval)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file, applying defaults for missing
// values and validating the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
