package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, 100, cfg.CacheSizeMB)
	require.True(t, cfg.EnableWAL)
	require.Equal(t, 3, cfg.CompressionLevel)
	require.Equal(t, 1000, cfg.FlushIntervalMS)
	require.Equal(t, "messagepack", cfg.SerializationFormat)
	require.Equal(t, 300, cfg.CacheTTLSecs)
}

func TestClampBoundsCompressionLevel(t *testing.T) {
	require.Equal(t, 0, Config{CompressionLevel: -5}.Clamp().CompressionLevel)
	require.Equal(t, 9, Config{CompressionLevel: 99}.Clamp().CompressionLevel)
	require.Equal(t, 5, Config{CompressionLevel: 5, CacheSizeMB: 1, SerializationFormat: "json", CacheTTLSecs: 1}.Clamp().CompressionLevel)
}

func TestLoadYAMLMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadYAML(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestSaveThenLoadYAMLRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	want := Config{
		Path:                dir,
		CacheSizeMB:         250,
		EnableWAL:           false,
		CompressionLevel:    7,
		FlushIntervalMS:     500,
		SerializationFormat: "json",
		CacheTTLSecs:        60,
	}
	require.NoError(t, SaveYAML(path, want))

	got, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHeaderRoundTripsAndValidates(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()

	h1, err := OpenOrCreateHeader(dir, cfg)
	require.NoError(t, err)
	require.Equal(t, FormatVersion, h1.FormatVersion)

	h2, err := OpenOrCreateHeader(dir, cfg)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHeaderRejectsFormatMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	_, err := OpenOrCreateHeader(dir, cfg)
	require.NoError(t, err)

	other := cfg
	other.SerializationFormat = "binary"
	_, err = OpenOrCreateHeader(dir, other)
	require.Error(t, err)
}

func TestFingerprintDiffersOnCacheChange(t *testing.T) {
	a := Fingerprint(Default())
	b := Fingerprint(Config{SerializationFormat: "messagepack", CacheSizeMB: 200, CacheTTLSecs: 300})
	require.NotEqual(t, a, b)
}
