package graph

import (
	"time"

	"github.com/steveyegge/lineagegraph/internal/ids"
)

// EdgeType is the one-byte discriminator for an edge's typed properties,
// persisted ahead of the body in the compact binary format. Every edge is
// filed under the same eo/ and ei/ index families whatever its type.
type EdgeType uint8

const (
	EdgeFollows EdgeType = iota + 1
	EdgeHasResponse
	EdgeInvokes
	EdgeInstantiates
	EdgeInherits
	EdgeTransfersTo
	EdgeReferences
)

func (t EdgeType) String() string {
	switch t {
	case EdgeFollows:
		return "follows"
	case EdgeHasResponse:
		return "has_response"
	case EdgeInvokes:
		return "invokes"
	case EdgeInstantiates:
		return "instantiates"
	case EdgeInherits:
		return "inherits"
	case EdgeTransfersTo:
		return "transfers_to"
	case EdgeReferences:
		return "references"
	default:
		return "unknown"
	}
}

// EdgeProperties is the closed tagged-variant interface for the payload
// carried by an edge. Exactly one of the seven concrete types below
// satisfies it; Edge.Type must agree with the concrete type of Edge.Properties
// (enforced by the constructors in this file, not by the type system).
type EdgeProperties interface {
	edgeType() EdgeType
}

// FollowsProperties marks a Prompt as the direct successor of a prior
// Prompt/Response within a session's turn sequence.
type FollowsProperties struct{}

func (FollowsProperties) edgeType() EdgeType { return EdgeFollows }

// HasResponseProperties links a Prompt to its Response.
type HasResponseProperties struct{}

func (HasResponseProperties) edgeType() EdgeType { return EdgeHasResponse }

// InvokesProperties links a Response to a ToolInvocation it triggered.
type InvokesProperties struct {
	InvocationOrder int
	Success         bool
	Required        bool
}

func (InvokesProperties) edgeType() EdgeType { return EdgeInvokes }

// InstantiatesProperties links a Prompt to the Template it was rendered
// from.
type InstantiatesProperties struct {
	TemplateVersion   Version
	VariableBindings  map[string]string
	InstantiationTime time.Time
}

func (InstantiatesProperties) edgeType() EdgeType { return EdgeInstantiates }

// InheritsProperties links a child Template to its parent Template
// (invariant in spec.md §9: inheritance forms a DAG bounded by
// MaxInheritanceDepth).
type InheritsProperties struct {
	OverrideSections []string
	VersionDiff      string
	InheritanceDepth int
}

func (InheritsProperties) edgeType() EdgeType { return EdgeInherits }

// Priority ranks the urgency of an agent handoff.
type Priority uint8

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// TransfersToProperties links one Agent to another it handed a conversation
// off to.
type TransfersToProperties struct {
	HandoffReason  string
	ContextSummary string
	Priority       Priority
}

func (TransfersToProperties) edgeType() EdgeType { return EdgeTransfersTo }

// ContextType classifies the external source a References edge points at.
type ContextType uint8

const (
	ContextDocument ContextType = iota + 1
	ContextWebPage
	ContextDatabase
	ContextVectorSearch
	ContextMemory
)

func (c ContextType) String() string {
	switch c {
	case ContextDocument:
		return "document"
	case ContextWebPage:
		return "web_page"
	case ContextDatabase:
		return "database"
	case ContextVectorSearch:
		return "vector_search"
	case ContextMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// ReferencesProperties links a node to an external piece of retrieved
// context (e.g. a RAG chunk).
type ReferencesProperties struct {
	ContextType    ContextType
	RelevanceScore float64
	ChunkID        string // empty means "no chunk id"
}

func (ReferencesProperties) edgeType() EdgeType { return EdgeReferences }

// Edge is the single concrete edge type; its Properties field carries one
// of the seven variants above, selected by Type.
type Edge struct {
	ID         ids.EdgeID
	From       ids.NodeID
	To         ids.NodeID
	Type       EdgeType
	Properties EdgeProperties
	CreatedAt  time.Time
}

// NewEdge builds an Edge, deriving Type from the concrete type of props so
// the two fields can never disagree.
func NewEdge(id ids.EdgeID, from, to ids.NodeID, props EdgeProperties, createdAt time.Time) Edge {
	return Edge{
		ID:         id,
		From:       from,
		To:         to,
		Type:       props.edgeType(),
		Properties: props,
		CreatedAt:  createdAt,
	}
}
