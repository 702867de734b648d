// Env var overrides on top of the YAML-loaded Config, the way the
// teacher's cmd/bd/config.go binds viper to both a config file and the
// process environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix recognized for config
// overrides, e.g. LINEAGEGRAPH_CACHE_SIZE_MB.
const EnvPrefix = "LINEAGEGRAPH"

// ApplyEnvOverrides layers LINEAGEGRAPH_-prefixed environment variables
// onto cfg using viper, the same binding the teacher's daemon config uses
// for its own BD_-prefixed vars. Only fields actually present as env vars
// are overridden; everything else is left as loaded from YAML.
func ApplyEnvOverrides(cfg Config) Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache_size_mb", cfg.CacheSizeMB)
	v.SetDefault("enable_wal", cfg.EnableWAL)
	v.SetDefault("compression_level", cfg.CompressionLevel)
	v.SetDefault("flush_interval_ms", cfg.FlushIntervalMS)
	v.SetDefault("serialization_format", cfg.SerializationFormat)
	v.SetDefault("cache_ttl_secs", cfg.CacheTTLSecs)
	v.SetDefault("path", cfg.Path)

	_ = v.BindEnv("cache_size_mb")
	_ = v.BindEnv("enable_wal")
	_ = v.BindEnv("compression_level")
	_ = v.BindEnv("flush_interval_ms")
	_ = v.BindEnv("serialization_format")
	_ = v.BindEnv("cache_ttl_secs")
	_ = v.BindEnv("path")

	out := cfg
	out.Path = v.GetString("path")
	out.CacheSizeMB = v.GetInt("cache_size_mb")
	out.EnableWAL = v.GetBool("enable_wal")
	out.CompressionLevel = v.GetInt("compression_level")
	out.FlushIntervalMS = v.GetInt("flush_interval_ms")
	out.SerializationFormat = v.GetString("serialization_format")
	out.CacheTTLSecs = v.GetInt("cache_ttl_secs")
	return out.Clamp()
}
