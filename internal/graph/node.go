// Package graph defines the typed node/edge data model described in
// spec.md §3: a tagged-variant Node type (Session, Prompt, Response,
// ToolInvocation, Template, Agent) and a single Edge type carrying one of
// seven typed property variants. The shapes mirror original_source's
// llm-memory-graph-types crate (AgentNode, PromptNode, ResponseNode,
// ToolInvocation, PromptTemplate, ConversationSession, TokenUsage, Version,
// VariableSpec) with Go idioms: a closed interface plus concrete structs
// instead of a Rust enum, and a one-byte discriminator for the compact
// binary format in internal/serialize.
package graph

import (
	"time"

	"github.com/steveyegge/lineagegraph/internal/ids"
)

// NodeType is the one-byte discriminator persisted ahead of every node's
// binary-format body (spec.md §6, "on-disk framing").
type NodeType uint8

const (
	NodeTypeSession NodeType = iota + 1
	NodeTypePrompt
	NodeTypeResponse
	NodeTypeToolInvocation
	NodeTypeTemplate
	NodeTypeAgent
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeSession:
		return "session"
	case NodeTypePrompt:
		return "prompt"
	case NodeTypeResponse:
		return "response"
	case NodeTypeToolInvocation:
		return "tool_invocation"
	case NodeTypeTemplate:
		return "template"
	case NodeTypeAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Node is the closed tagged-variant interface implemented by exactly the
// six node kinds named in spec.md §3. Dispatch on Type() at operation
// entry rather than type-asserting scattered across the codebase.
type Node interface {
	NodeID() ids.NodeID
	Type() NodeType
	Created() time.Time
}

// Session is the root of a subtree of prompts/responses/tools (invariant 1).
type Session struct {
	ID        ids.SessionID
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]string
	Tags      map[string]struct{}
}

func (s *Session) NodeID() ids.NodeID  { return ids.NodeID(s.ID) }
func (s *Session) Type() NodeType      { return NodeTypeSession }
func (s *Session) Created() time.Time { return s.CreatedAt }

// PromptMetadata carries free-form metadata attached to a prompt.
type PromptMetadata struct {
	Model       string
	Temperature float64
	Extra       map[string]string
}

// Prompt is a single conversational turn submitted by the caller.
type Prompt struct {
	ID        ids.NodeID
	SessionID ids.SessionID
	Content   string
	Metadata  PromptMetadata
	CreatedAt time.Time
}

func (p *Prompt) NodeID() ids.NodeID  { return p.ID }
func (p *Prompt) Type() NodeType      { return NodeTypePrompt }
func (p *Prompt) Created() time.Time { return p.CreatedAt }

// TokenUsage tracks prompt/completion token accounting. TotalTokens is
// enforced at construction (invariant 5) by NewTokenUsage.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewTokenUsage constructs a TokenUsage with TotalTokens derived from its
// parts, per invariant 5 (TokenUsage.total_tokens = prompt_tokens +
// completion_tokens).
func NewTokenUsage(promptTokens, completionTokens int) TokenUsage {
	return TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// ResponseMetadata carries free-form metadata attached to a response.
type ResponseMetadata struct {
	Model      string
	LatencyMS  int64
	StopReason string
	Extra      map[string]string
}

// Response is the model's reply to a Prompt.
type Response struct {
	ID        ids.NodeID
	PromptID  ids.NodeID
	Content   string
	Usage     TokenUsage
	Metadata  ResponseMetadata
	CreatedAt time.Time
}

func (r *Response) NodeID() ids.NodeID  { return r.ID }
func (r *Response) Type() NodeType      { return NodeTypeResponse }
func (r *Response) Created() time.Time { return r.CreatedAt }

// ToolStatus is the lifecycle state of a ToolInvocation (spec.md §4.E).
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolSuccess ToolStatus = "success"
	ToolFailed  ToolStatus = "failed"
)

// ToolInvocation records a single tool call made while producing a Response.
type ToolInvocation struct {
	ID         ids.NodeID
	ResponseID ids.NodeID
	ToolName   string
	Parameters map[string]any
	Status     ToolStatus
	Result     map[string]any // nil until terminal
	Error      string         // populated only when Status == ToolFailed
	DurationMS int64
	RetryCount int
	Metadata   map[string]string
	CreatedAt  time.Time
}

func (t *ToolInvocation) NodeID() ids.NodeID  { return t.ID }
func (t *ToolInvocation) Type() NodeType      { return NodeTypeToolInvocation }
func (t *ToolInvocation) Created() time.Time  { return t.CreatedAt }

// RecordRetry increments RetryCount without leaving ToolPending, per the
// state machine in spec.md §4.E.
func (t *ToolInvocation) RecordRetry() {
	t.RetryCount++
}

// AgentStatus describes an agent's current lifecycle state.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentActive  AgentStatus = "active"
	AgentStopped AgentStatus = "stopped"
)

// AgentConfig is the agent's free-form configuration blob.
type AgentConfig map[string]any

// AgentMetrics tracks lightweight counters for an agent's activity.
type AgentMetrics struct {
	TurnsHandled  int64
	HandoffsSent  int64
	HandoffsRecvd int64
}

// Agent is an autonomous participant capable of TransfersTo handoffs. Like
// Template, it carries a distinct typed id (AgentID) alongside the NodeID
// that places it in the graph (spec.md §3): the two are not interchangeable.
type Agent struct {
	ID          ids.AgentID
	NodeID      ids.NodeID
	Name        string
	Description string
	Tools       []string
	Config      AgentConfig
	Metrics     AgentMetrics
	Status      AgentStatus
	CreatedAt   time.Time
}

func (a *Agent) Type() NodeType      { return NodeTypeAgent }
func (a *Agent) Created() time.Time { return a.CreatedAt }

// agentNode adapts *Agent to the Node interface. Agent can't implement Node
// directly: its NodeID field collides with the NodeID() method name Go
// requires for interface satisfaction (the same conflict Template has).
type agentNode struct{ *Agent }

func (a agentNode) NodeID() ids.NodeID  { return a.Agent.NodeID }
func (a agentNode) Type() NodeType      { return NodeTypeAgent }
func (a agentNode) Created() time.Time { return a.Agent.CreatedAt }

// AsNode adapts a *Agent to the Node interface, mirroring Template.AsNode.
func (a *Agent) AsNode() Node { return agentNode{a} }

// AsAgent unwraps a Node produced by AsNode back to its underlying *Agent,
// for callers (the serializer, cache) that need the concrete struct rather
// than the Node interface view.
func AsAgent(n Node) (*Agent, bool) {
	an, ok := n.(agentNode)
	if !ok {
		return nil, false
	}
	return an.Agent, true
}
