package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// NewAgentInput carries the caller-supplied fields for CreateAgent; id and
// created_at are assigned by the engine, metrics start at zero, and status
// starts Idle.
type NewAgentInput struct {
	Name        string
	Description string
	Tools       []string
	Config      graph.AgentConfig
}

// CreateAgent creates a new Agent node, per spec.md §3's Agent variant.
// Agents are not indexed under any sn/ prefix: an Agent is a standalone
// participant, not a node scoped to a single conversation session.
func (e *Engine) CreateAgent(ctx context.Context, in NewAgentInput) (ids.NodeID, error) {
	if in.Name == "" {
		return ids.NodeID{}, xerrors.New(xerrors.InvalidArgument, "engine.CreateAgent", "name must not be empty")
	}
	a := &graph.Agent{
		ID:          ids.NewAgentID(),
		NodeID:      ids.NewNodeID(),
		Name:        in.Name,
		Description: in.Description,
		Tools:       in.Tools,
		Config:      in.Config,
		Status:      graph.AgentIdle,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.createNode(ctx, a.AsNode(), ids.SessionID{}, false); err != nil {
		return ids.NodeID{}, err
	}
	return a.NodeID, nil
}

// GetAgent fetches an agent by node id, failing NotFound if the id names a
// node of a different type.
func (e *Engine) GetAgent(ctx context.Context, id ids.NodeID) (*graph.Agent, error) {
	n, err := e.getNode(ctx, id)
	if err != nil {
		return nil, err
	}
	a, ok := graph.AsAgent(n)
	if !ok {
		return nil, wrapNotFound("engine.GetAgent", "agent")
	}
	return a, nil
}

// TransferTo records a handoff from one agent to another: a TransfersTo
// edge carrying the handoff reason, a context summary, and a priority
// (spec.md §3), plus the HandoffsSent/HandoffsRecvd counters on each
// agent's AgentMetrics (spec.md §3, Agent.metrics).
func (e *Engine) TransferTo(ctx context.Context, from, to ids.NodeID, reason, contextSummary string, priority graph.Priority) error {
	fromAgent, err := e.GetAgent(ctx, from)
	if err != nil {
		return err
	}
	toAgent, err := e.GetAgent(ctx, to)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	edge := graph.NewEdge(ids.NewEdgeID(), from, to, graph.TransfersToProperties{
		HandoffReason:  reason,
		ContextSummary: contextSummary,
		Priority:       priority,
	}, now)
	if err := e.createEdge(ctx, edge); err != nil {
		return err
	}

	fromAgent.Metrics.HandoffsSent++
	if err := e.writeNodePrimary(ctx, fromAgent.AsNode()); err != nil {
		return err
	}
	toAgent.Metrics.HandoffsRecvd++
	if err := e.writeNodePrimary(ctx, toAgent.AsNode()); err != nil {
		return err
	}

	e.emit(ctx, eventbus.NewAgentHandoff(from, to, priority, now))
	return nil
}

// SetAgentStatus transitions an agent's lifecycle status in place.
func (e *Engine) SetAgentStatus(ctx context.Context, id ids.NodeID, status graph.AgentStatus) error {
	a, err := e.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	a.Status = status
	return e.writeNodePrimary(ctx, a.AsNode())
}

// RecordAgentTurn increments an agent's turns_handled counter.
func (e *Engine) RecordAgentTurn(ctx context.Context, id ids.NodeID) error {
	a, err := e.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	a.Metrics.TurnsHandled++
	return e.writeNodePrimary(ctx, a.AsNode())
}

// PluginContext is the plain data shape an out-of-process plugin host
// collaborator constructs around an engine operation (spec.md §6: "Plugin
// host calls engine operations before/after mutations with a
// PluginContext{operation, data, metadata, timestamp}; errors from
// before-hooks abort the mutation"). No hook dispatch/manager is
// implemented here — that collaborator is explicitly out of scope
// (spec.md §1) — this struct only gives it a stable shape to construct.
type PluginContext struct {
	Operation string
	Data      json.RawMessage
	Metadata  map[string]string
	Timestamp time.Time
}
