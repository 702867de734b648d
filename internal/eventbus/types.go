// Package eventbus implements the event-streaming subsystem described in
// spec.md §4.G: typed mutation/query events, a push-only Publisher
// interface shared by in-memory/no-op/external sinks, and an EventStream
// that layers a bounded broadcast channel plus a ring-buffer replay window
// on top. The broadcast+ring-buffer+per-subscriber-channel shape is lifted
// directly from the teacher's internal/rpc/server_core.go
// (recentMutations, droppedEvents, sseSubscriber, Subscribe/unsubscribe);
// the handler priority-dispatch shape from the teacher's own
// internal/eventbus/bus.go (Register/Dispatch sorted by priority) is not
// reused here, since spec.md §4.G specifies pub/sub fanout, not an
// ordered before/after hook chain — that belongs to the out-of-scope
// plugin host collaborator (spec.md §6).
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// Type is the stable, snake_case type tag for an event, matching the wire
// shape external sinks receive (spec.md §6: `{type, timestamp, ...fields}`
// with type in snake_case).
type Type string

const (
	TypeNodeCreated          Type = "node_created"
	TypeEdgeCreated          Type = "edge_created"
	TypePromptSubmitted      Type = "prompt_submitted"
	TypeResponseGenerated    Type = "response_generated"
	TypeToolInvoked          Type = "tool_invoked"
	TypeAgentHandoff         Type = "agent_handoff"
	TypeTemplateInstantiated Type = "template_instantiated"
	TypeQueryExecuted        Type = "query_executed"
)

// Event is the tagged-union interface every event variant in spec.md §4.G
// satisfies: a timestamp, a deterministic partition key for routing in
// external buses, and the type tag. Key() mirrors spec.md §6's
// `session:<id>` / `node:<id>` partition-key convention.
type Event interface {
	Type() Type
	Timestamp() time.Time
	Key() string
	json.Marshaler
}

// base is embedded by every concrete event to provide Type/Timestamp/Key
// without repeating the boilerplate; MarshalJSON is implemented per
// concrete event since each carries different fields.
type base struct {
	typ Type
	at  time.Time
	key string
}

func (b base) Type() Type           { return b.typ }
func (b base) Timestamp() time.Time { return b.at }
func (b base) Key() string          { return b.key }

func sessionKey(id ids.SessionID) string { return "session:" + id.String() }
func nodeKey(id ids.NodeID) string       { return "node:" + id.String() }

// NodeCreatedEvent fires whenever any node variant is persisted.
type NodeCreatedEvent struct {
	base
	NodeID   ids.NodeID
	NodeType graph.NodeType
}

// NewNodeCreated constructs a NodeCreatedEvent partitioned by node id.
func NewNodeCreated(id ids.NodeID, nt graph.NodeType, at time.Time) NodeCreatedEvent {
	return NodeCreatedEvent{base: base{typ: TypeNodeCreated, at: at, key: nodeKey(id)}, NodeID: id, NodeType: nt}
}

func (e NodeCreatedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		NodeID    string    `json:"node_id"`
		NodeType  string    `json:"node_type"`
	}{e.Type(), e.Timestamp(), e.NodeID.String(), e.NodeType.String()})
}

// EdgeCreatedEvent fires whenever any edge is persisted.
type EdgeCreatedEvent struct {
	base
	EdgeID   ids.EdgeID
	EdgeType graph.EdgeType
	From     ids.NodeID
	To       ids.NodeID
}

// NewEdgeCreated constructs an EdgeCreatedEvent partitioned by source node.
func NewEdgeCreated(id ids.EdgeID, et graph.EdgeType, from, to ids.NodeID, at time.Time) EdgeCreatedEvent {
	return EdgeCreatedEvent{base: base{typ: TypeEdgeCreated, at: at, key: nodeKey(from)}, EdgeID: id, EdgeType: et, From: from, To: to}
}

func (e EdgeCreatedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		EdgeID    string    `json:"edge_id"`
		EdgeType  string    `json:"edge_type"`
		From      string    `json:"from"`
		To        string    `json:"to"`
	}{e.Type(), e.Timestamp(), e.EdgeID.String(), e.EdgeType.String(), e.From.String(), e.To.String()})
}

// PromptSubmittedEvent fires when a prompt is added to a session.
type PromptSubmittedEvent struct {
	base
	SessionID ids.SessionID
	PromptID  ids.NodeID
}

// NewPromptSubmitted constructs a PromptSubmittedEvent partitioned by session.
func NewPromptSubmitted(session ids.SessionID, prompt ids.NodeID, at time.Time) PromptSubmittedEvent {
	return PromptSubmittedEvent{base: base{typ: TypePromptSubmitted, at: at, key: sessionKey(session)}, SessionID: session, PromptID: prompt}
}

func (e PromptSubmittedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		SessionID string    `json:"session_id"`
		PromptID  string    `json:"prompt_id"`
	}{e.Type(), e.Timestamp(), e.SessionID.String(), e.PromptID.String()})
}

// ResponseGeneratedEvent fires when a response is attached to a prompt.
type ResponseGeneratedEvent struct {
	base
	SessionID   ids.SessionID
	PromptID    ids.NodeID
	ResponseID  ids.NodeID
	TotalTokens int
}

// NewResponseGenerated constructs a ResponseGeneratedEvent partitioned by session.
func NewResponseGenerated(session ids.SessionID, prompt, response ids.NodeID, totalTokens int, at time.Time) ResponseGeneratedEvent {
	return ResponseGeneratedEvent{
		base:        base{typ: TypeResponseGenerated, at: at, key: sessionKey(session)},
		SessionID:   session,
		PromptID:    prompt,
		ResponseID:  response,
		TotalTokens: totalTokens,
	}
}

func (e ResponseGeneratedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        Type      `json:"type"`
		Timestamp   time.Time `json:"timestamp"`
		SessionID   string    `json:"session_id"`
		PromptID    string    `json:"prompt_id"`
		ResponseID  string    `json:"response_id"`
		TotalTokens int       `json:"total_tokens"`
	}{e.Type(), e.Timestamp(), e.SessionID.String(), e.PromptID.String(), e.ResponseID.String(), e.TotalTokens})
}

// ToolInvokedEvent fires when a tool invocation is recorded or transitions
// to a terminal state.
type ToolInvokedEvent struct {
	base
	ResponseID ids.NodeID
	ToolID     ids.NodeID
	ToolName   string
	Status     graph.ToolStatus
}

// NewToolInvoked constructs a ToolInvokedEvent partitioned by owning response.
func NewToolInvoked(response, tool ids.NodeID, name string, status graph.ToolStatus, at time.Time) ToolInvokedEvent {
	return ToolInvokedEvent{base: base{typ: TypeToolInvoked, at: at, key: nodeKey(response)}, ResponseID: response, ToolID: tool, ToolName: name, Status: status}
}

func (e ToolInvokedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       Type      `json:"type"`
		Timestamp  time.Time `json:"timestamp"`
		ResponseID string    `json:"response_id"`
		ToolID     string    `json:"tool_id"`
		ToolName   string    `json:"tool_name"`
		Status     string    `json:"status"`
	}{e.Type(), e.Timestamp(), e.ResponseID.String(), e.ToolID.String(), e.ToolName, string(e.Status)})
}

// AgentHandoffEvent fires when a TransfersTo edge links one agent to another.
type AgentHandoffEvent struct {
	base
	From     ids.NodeID
	To       ids.NodeID
	Priority graph.Priority
}

// NewAgentHandoff constructs an AgentHandoffEvent partitioned by the handing-off agent.
func NewAgentHandoff(from, to ids.NodeID, priority graph.Priority, at time.Time) AgentHandoffEvent {
	return AgentHandoffEvent{base: base{typ: TypeAgentHandoff, at: at, key: nodeKey(from)}, From: from, To: to, Priority: priority}
}

func (e AgentHandoffEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
		From      string    `json:"from"`
		To        string    `json:"to"`
		Priority  string    `json:"priority"`
	}{e.Type(), e.Timestamp(), e.From.String(), e.To.String(), e.Priority.String()})
}

// TemplateInstantiatedEvent fires when a prompt is linked to a template via
// an Instantiates edge.
type TemplateInstantiatedEvent struct {
	base
	TemplateID ids.TemplateID
	PromptID   ids.NodeID
	Version    graph.Version
}

// NewTemplateInstantiated constructs a TemplateInstantiatedEvent partitioned by prompt.
func NewTemplateInstantiated(tmpl ids.TemplateID, prompt ids.NodeID, v graph.Version, at time.Time) TemplateInstantiatedEvent {
	return TemplateInstantiatedEvent{base: base{typ: TypeTemplateInstantiated, at: at, key: nodeKey(prompt)}, TemplateID: tmpl, PromptID: prompt, Version: v}
}

func (e TemplateInstantiatedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       Type      `json:"type"`
		Timestamp  time.Time `json:"timestamp"`
		TemplateID string    `json:"template_id"`
		PromptID   string    `json:"prompt_id"`
		Version    string    `json:"version"`
	}{e.Type(), e.Timestamp(), e.TemplateID.String(), e.PromptID.String(), e.Version.String()})
}

// QueryExecutedEvent fires once per completed query execution (materialized
// or streaming), carrying the result count and whether it was a streaming
// execution.
type QueryExecutedEvent struct {
	base
	ResultCount int
	Streaming   bool
}

// NewQueryExecuted constructs a QueryExecutedEvent. Partitioned by session
// when the query carried a session filter, otherwise by the literal "query".
func NewQueryExecuted(session ids.SessionID, resultCount int, streaming bool, at time.Time) QueryExecutedEvent {
	key := "query"
	if !session.IsZero() {
		key = sessionKey(session)
	}
	return QueryExecutedEvent{base: base{typ: TypeQueryExecuted, at: at, key: key}, ResultCount: resultCount, Streaming: streaming}
}

func (e QueryExecutedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        Type      `json:"type"`
		Timestamp   time.Time `json:"timestamp"`
		ResultCount int       `json:"result_count"`
		Streaming   bool      `json:"streaming"`
	}{e.Type(), e.Timestamp(), e.ResultCount, e.Streaming})
}
