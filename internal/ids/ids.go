// Package ids defines the per-entity 128-bit identifier types used
// throughout the graph engine. Each entity class gets its own Go type so
// the compiler rejects accidental cross-entity mixups (passing a SessionID
// where a NodeID is expected), the same discipline the original
// llm-memory-graph implementation enforces with newtype wrappers around
// uuid::Uuid, and that the teacher's own internal/idgen keeps for issue IDs.
//
// Ids are generated with crypto-random UUIDv4s (github.com/google/uuid) and
// are totally ordered by their 16-byte representation, which is what makes
// them usable as fixed-width, sortable key prefixes in the KV backend's
// key layout (see internal/engine/keys.go).
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeID identifies a node (Session, Prompt, Response, ToolInvocation,
// Template, or Agent) in the graph.
type NodeID uuid.UUID

// EdgeID identifies an edge.
type EdgeID uuid.UUID

// SessionID identifies a conversation session. Sessions are nodes too, but
// carry a distinct type since session identity flows through the back
// pointers on every other node (invariant 1 in spec.md §3).
type SessionID uuid.UUID

// TemplateID identifies a prompt template node.
type TemplateID uuid.UUID

// AgentID identifies an autonomous agent node.
type AgentID uuid.UUID

// NewNodeID generates a fresh random node id.
func NewNodeID() NodeID { return NodeID(uuid.New()) }

// NewEdgeID generates a fresh random edge id.
func NewEdgeID() EdgeID { return EdgeID(uuid.New()) }

// NewSessionID generates a fresh random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewTemplateID generates a fresh random template id.
func NewTemplateID() TemplateID { return TemplateID(uuid.New()) }

// NewAgentID generates a fresh random agent id.
func NewAgentID() AgentID { return AgentID(uuid.New()) }

// Bytes returns the 16-byte big-endian-sortable representation of id.
func (id NodeID) Bytes() []byte { b := uuid.UUID(id); return b[:] }

// Bytes returns the 16-byte sortable representation of id.
func (id EdgeID) Bytes() []byte { b := uuid.UUID(id); return b[:] }

// Bytes returns the 16-byte sortable representation of id.
func (id SessionID) Bytes() []byte { b := uuid.UUID(id); return b[:] }

// Bytes returns the 16-byte sortable representation of id.
func (id TemplateID) Bytes() []byte { b := uuid.UUID(id); return b[:] }

// Bytes returns the 16-byte sortable representation of id.
func (id AgentID) Bytes() []byte { b := uuid.UUID(id); return b[:] }

func (id NodeID) String() string     { return uuid.UUID(id).String() }
func (id EdgeID) String() string     { return uuid.UUID(id).String() }
func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id TemplateID) String() string { return uuid.UUID(id).String() }
func (id AgentID) String() string    { return uuid.UUID(id).String() }

// IsZero reports whether id is the zero value (never generated).
func (id NodeID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EdgeID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// NodeIDFromBytes parses a 16-byte slice produced by Bytes back into a NodeID.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return NodeID{}, fmt.Errorf("ids: parse node id: %w", err)
	}
	return NodeID(u), nil
}

// EdgeIDFromBytes parses a 16-byte slice produced by Bytes back into an EdgeID.
func EdgeIDFromBytes(b []byte) (EdgeID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return EdgeID{}, fmt.Errorf("ids: parse edge id: %w", err)
	}
	return EdgeID(u), nil
}

// SessionIDFromBytes parses a 16-byte slice into a SessionID.
func SessionIDFromBytes(b []byte) (SessionID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return SessionID{}, fmt.Errorf("ids: parse session id: %w", err)
	}
	return SessionID(u), nil
}

// NodeIDFromString parses a canonical UUID string into a NodeID.
func NodeIDFromString(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("ids: parse node id %q: %w", s, err)
	}
	return NodeID(u), nil
}

// MarshalText implements encoding.TextMarshaler so ids serialize as their
// canonical string form under JSON, YAML, and MessagePack's string mode.
func (id NodeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("ids: unmarshal node id: %w", err)
	}
	*id = NodeID(u)
	return nil
}

func (id EdgeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EdgeID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("ids: unmarshal edge id: %w", err)
	}
	*id = EdgeID(u)
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SessionID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("ids: unmarshal session id: %w", err)
	}
	*id = SessionID(u)
	return nil
}

func (id TemplateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TemplateID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("ids: unmarshal template id: %w", err)
	}
	*id = TemplateID(u)
	return nil
}

func (id AgentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AgentID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("ids: unmarshal agent id: %w", err)
	}
	*id = AgentID(u)
	return nil
}
