package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// headerMagic identifies a store's header file so an unrelated file
// opened by mistake fails fast rather than parsing garbage as a header.
const headerMagic = "lineagegraph-store-header-v1"

// FormatVersion is the on-disk framing version (spec.md §6); bumped only
// on an incompatible change to the key layout or envelope shape.
const FormatVersion = 1

// Header is the small flat record persisted as path/header (spec.md §6):
// magic, format version, serialization format, and a cache-config
// fingerprint used to detect an incompatible reopen. TOML is used here
// rather than the layered YAML app config, mirroring SPEC_FULL §1's
// separation of this single flat record from config.yaml.
type Header struct {
	Magic               string `toml:"magic"`
	FormatVersion       int    `toml:"format_version"`
	SerializationFormat string `toml:"serialization_format"`
	Fingerprint         string `toml:"fingerprint"`
}

// Fingerprint computes a cheap hash of the structural config that must
// match across a reopen: the serialization format and cache sizing. It is
// deliberately not a cryptographic hash — spec.md's GLOSSARY calls it "a
// cheap hash of structural config used to detect incompatible reopens".
func Fingerprint(cfg Config) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", cfg.SerializationFormat, cfg.CacheSizeMB, cfg.CacheTTLSecs)
	return fmt.Sprintf("%x", h.Sum64())
}

// NewHeader builds the header that should be written for a freshly opened
// store under cfg.
func NewHeader(cfg Config) Header {
	return Header{
		Magic:               headerMagic,
		FormatVersion:       FormatVersion,
		SerializationFormat: cfg.SerializationFormat,
		Fingerprint:         Fingerprint(cfg),
	}
}

// headerPath returns the header file path for a store directory.
func headerPath(storeDir string) string { return filepath.Join(storeDir, "header") }

// WriteHeader writes h to storeDir/header.
func WriteHeader(storeDir string, h Header) error {
	if err := os.MkdirAll(storeDir, 0o750); err != nil {
		return xerrors.Wrap(xerrors.InvalidConfig, "config.WriteHeader", "create store directory", err)
	}
	f, err := os.OpenFile(headerPath(storeDir), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return xerrors.Wrap(xerrors.InvalidConfig, "config.WriteHeader", "open header file", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(h); err != nil {
		return xerrors.Wrap(xerrors.InvalidConfig, "config.WriteHeader", "encode header", err)
	}
	return nil
}

// ReadHeader reads storeDir/header, returning (Header{}, false, nil) if no
// header exists yet (a brand-new store).
func ReadHeader(storeDir string) (Header, bool, error) {
	data, err := os.ReadFile(headerPath(storeDir)) // #nosec G304 -- storeDir is operator-supplied
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, false, nil
		}
		return Header{}, false, xerrors.Wrap(xerrors.InvalidConfig, "config.ReadHeader", "read header file", err)
	}

	var h Header
	if _, err := toml.Decode(string(data), &h); err != nil {
		return Header{}, false, xerrors.Wrap(xerrors.InvalidConfig, "config.ReadHeader", "parse header file", err)
	}
	return h, true, nil
}

// OpenOrCreateHeader reads an existing header and validates it against cfg,
// or writes a fresh one if the store is new. Reopening with an
// incompatible header fails InvalidConfig (spec.md §6).
func OpenOrCreateHeader(storeDir string, cfg Config) (Header, error) {
	existing, ok, err := ReadHeader(storeDir)
	if err != nil {
		return Header{}, err
	}
	want := NewHeader(cfg)
	if !ok {
		if err := WriteHeader(storeDir, want); err != nil {
			return Header{}, err
		}
		return want, nil
	}

	if existing.Magic != headerMagic {
		return Header{}, xerrors.New(xerrors.InvalidConfig, "config.OpenOrCreateHeader",
			fmt.Sprintf("not a lineagegraph store: bad magic %q", existing.Magic))
	}
	if existing.FormatVersion != want.FormatVersion {
		return Header{}, xerrors.New(xerrors.InvalidConfig, "config.OpenOrCreateHeader",
			fmt.Sprintf("format version mismatch: store has %d, opening with %d", existing.FormatVersion, want.FormatVersion))
	}
	if existing.SerializationFormat != want.SerializationFormat {
		return Header{}, xerrors.New(xerrors.InvalidConfig, "config.OpenOrCreateHeader",
			fmt.Sprintf("serialization format mismatch: store has %q, opening with %q", existing.SerializationFormat, want.SerializationFormat))
	}
	if existing.Fingerprint != want.Fingerprint {
		return Header{}, xerrors.New(xerrors.InvalidConfig, "config.OpenOrCreateHeader",
			fmt.Sprintf("config fingerprint mismatch: store has %q, opening with %q", existing.Fingerprint, want.Fingerprint))
	}
	return existing, nil
}
