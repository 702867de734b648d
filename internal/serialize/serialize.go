package serialize

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// Format selects the wire encoding used for node/edge bodies (spec.md §4.B).
// The chosen format is written into the store's header at creation time and
// a mismatched format on reopen fails fast (spec.md §6).
type Format uint8

const (
	// FormatJSON is human-readable and the slowest of the three.
	FormatJSON Format = iota + 1
	// FormatMessagePack is binary and map-keyed (field names retained).
	FormatMessagePack
	// FormatBinary is binary and array-keyed: field names are dropped and
	// replaced by positional order, trading flexibility for size. This is
	// this module's analog of bincode: same MessagePack wire protocol,
	// array-encoded structs instead of map-encoded ones, via
	// vmihailenco/msgpack's struct-as-array mode rather than a hand-rolled
	// codec (see DESIGN.md).
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMessagePack:
		return "messagepack"
	case FormatBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseFormat maps a header string back to a Format, failing fast on
// anything unrecognized (spec.md §6 "reopening with a mismatched format
// must fail immediately").
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "messagepack":
		return FormatMessagePack, nil
	case "binary":
		return FormatBinary, nil
	default:
		return 0, xerrors.New(xerrors.InvalidConfig, "serialize.ParseFormat", "unknown serialization format: "+s)
	}
}

var (
	unsupportedNodeErr = xerrors.New(xerrors.Serialization, "serialize", "unsupported node implementation")
	unsupportedEdgeErr = xerrors.New(xerrors.Serialization, "serialize", "unsupported edge properties implementation")
	missingPayloadErr  = xerrors.New(xerrors.Serialization, "serialize", "envelope type tag does not match populated payload")
)

// Serializer encodes/decodes Node and Edge values under a single fixed
// Format, mirroring original_source's Serializer (storage/serialization.rs).
type Serializer struct {
	format Format
}

// New constructs a Serializer bound to format.
func New(format Format) *Serializer { return &Serializer{format: format} }

// Format reports the serializer's bound format.
func (s *Serializer) Format() Format { return s.format }

// SerializeNode encodes n under the serializer's format.
func (s *Serializer) SerializeNode(n graph.Node) ([]byte, error) {
	env, err := toNodeEnvelope(n)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Serialization, "Serializer.SerializeNode", "build envelope", err)
	}
	return s.encode(env)
}

// DeserializeNode decodes bytes produced by SerializeNode under the same format.
func (s *Serializer) DeserializeNode(data []byte) (graph.Node, error) {
	var env nodeEnvelope
	if err := s.decode(data, &env); err != nil {
		return nil, xerrors.Wrap(xerrors.Serialization, "Serializer.DeserializeNode", "decode envelope", err)
	}
	n, err := fromNodeEnvelope(&env)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Serialization, "Serializer.DeserializeNode", "build node", err)
	}
	return n, nil
}

// SerializeEdge encodes e under the serializer's format.
func (s *Serializer) SerializeEdge(e graph.Edge) ([]byte, error) {
	env, err := toEdgeEnvelope(e)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Serialization, "Serializer.SerializeEdge", "build envelope", err)
	}
	return s.encode(env)
}

// DeserializeEdge decodes bytes produced by SerializeEdge under the same format.
func (s *Serializer) DeserializeEdge(data []byte) (graph.Edge, error) {
	var env edgeEnvelope
	if err := s.decode(data, &env); err != nil {
		return graph.Edge{}, xerrors.Wrap(xerrors.Serialization, "Serializer.DeserializeEdge", "decode envelope", err)
	}
	e, err := fromEdgeEnvelope(&env)
	if err != nil {
		return graph.Edge{}, xerrors.Wrap(xerrors.Serialization, "Serializer.DeserializeEdge", "build edge", err)
	}
	return e, nil
}

func (s *Serializer) encode(v any) ([]byte, error) {
	switch s.format {
	case FormatJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, "encode", "json marshal", err)
		}
		return b, nil
	case FormatMessagePack:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, "encode", "messagepack marshal", err)
		}
		return b, nil
	case FormatBinary:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.UseArrayEncodedStructs(true)
		if err := enc.Encode(v); err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, "encode", "binary marshal", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, xerrors.New(xerrors.Serialization, "encode", "unknown format")
	}
}

func (s *Serializer) decode(data []byte, v any) error {
	switch s.format {
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return xerrors.Wrap(xerrors.Serialization, "decode", "json unmarshal", err)
		}
		return nil
	case FormatMessagePack:
		if err := msgpack.Unmarshal(data, v); err != nil {
			return xerrors.Wrap(xerrors.Serialization, "decode", "messagepack unmarshal", err)
		}
		return nil
	case FormatBinary:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.UseArrayEncodedStructs(true)
		if err := dec.Decode(v); err != nil {
			return xerrors.Wrap(xerrors.Serialization, "decode", "binary unmarshal", err)
		}
		return nil
	default:
		return xerrors.New(xerrors.Serialization, "decode", "unknown format")
	}
}
