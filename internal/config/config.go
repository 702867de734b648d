// Package config implements the engine's layered configuration, the way
// the teacher's internal/config layers config.yaml, viper-bound env vars,
// and fsnotify hot-reload (cmd/bd/config.go). Defaults mirror
// original_source's Config::default(): cache_size_mb 100, enable_wal true,
// compression_level 3, flush_interval_ms 1000, serialization_format
// messagepack, cache_ttl_secs 300 (spec.md §6).
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// Config is the engine-open configuration recognized by spec.md §6.
// Publishers are wired up by the caller after Load, not parsed from YAML
// (an event sink is a Go value, not a serializable config field).
type Config struct {
	Path                string `yaml:"path"`
	CacheSizeMB         int    `yaml:"cache_size_mb"`
	EnableWAL           bool   `yaml:"enable_wal"`
	CompressionLevel    int    `yaml:"compression_level"`
	FlushIntervalMS     int    `yaml:"flush_interval_ms"`
	SerializationFormat string `yaml:"serialization_format"`
	CacheTTLSecs        int    `yaml:"cache_ttl_secs"`
}

// Default returns the documented default configuration (spec.md §6).
func Default() Config {
	return Config{
		CacheSizeMB:         100,
		EnableWAL:           true,
		CompressionLevel:    3,
		FlushIntervalMS:     1000,
		SerializationFormat: "messagepack",
		CacheTTLSecs:        300,
	}
}

// Clamp applies spec.md §6's clamping rule to CompressionLevel (0–9),
// raises a negative FlushIntervalMS to 0, and fills a non-positive
// CacheSizeMB or CacheTTLSecs and an empty SerializationFormat from
// Default(); other fields are left as given. This mirrors the teacher's
// own "apply defaults, then clamp" config-loading posture.
func (c Config) Clamp() Config {
	if c.CompressionLevel < 0 {
		c.CompressionLevel = 0
	}
	if c.CompressionLevel > 9 {
		c.CompressionLevel = 9
	}
	if c.CacheSizeMB <= 0 {
		c.CacheSizeMB = Default().CacheSizeMB
	}
	if c.FlushIntervalMS < 0 {
		c.FlushIntervalMS = 0
	}
	if c.SerializationFormat == "" {
		c.SerializationFormat = Default().SerializationFormat
	}
	if c.CacheTTLSecs <= 0 {
		c.CacheTTLSecs = Default().CacheTTLSecs
	}
	return c
}

// LoadYAML reads a config.yaml at path, merging onto Default() and then
// Clamp()ing the result. A missing file is not an error: it just means
// every field falls back to default, matching the teacher's
// LoadLocalConfig's "return empty config, not an error" posture
// (internal/config/local_config.go).
func LoadYAML(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied store config
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.Clamp(), nil
		}
		return Config{}, xerrors.Wrap(xerrors.InvalidConfig, "config.LoadYAML", "read config file", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, xerrors.Wrap(xerrors.InvalidConfig, "config.LoadYAML", "parse config file", err)
	}
	return cfg.Clamp(), nil
}

// SaveYAML writes cfg to path as YAML, creating parent directories as needed.
func SaveYAML(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return xerrors.Wrap(xerrors.InvalidConfig, "config.SaveYAML", "create config directory", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return xerrors.Wrap(xerrors.InvalidConfig, "config.SaveYAML", "marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return xerrors.Wrap(xerrors.InvalidConfig, "config.SaveYAML", "write config file", err)
	}
	return nil
}
