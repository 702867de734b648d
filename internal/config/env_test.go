package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverridesLeavesConfigUnchangedWithNoEnv(t *testing.T) {
	cfg := Default()
	got := ApplyEnvOverrides(cfg)
	require.Equal(t, cfg, got)
}

func TestApplyEnvOverridesAppliesPrefixedVar(t *testing.T) {
	t.Setenv("LINEAGEGRAPH_CACHE_SIZE_MB", "512")
	t.Setenv("LINEAGEGRAPH_ENABLE_WAL", "false")

	got := ApplyEnvOverrides(Default())
	require.Equal(t, 512, got.CacheSizeMB)
	require.False(t, got.EnableWAL)
}

func TestApplyEnvOverridesStillClamps(t *testing.T) {
	t.Setenv("LINEAGEGRAPH_COMPRESSION_LEVEL", "99")

	got := ApplyEnvOverrides(Default())
	require.Equal(t, 9, got.CompressionLevel)
}
