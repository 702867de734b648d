package engine

import (
	"context"
	"sort"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// AddToolInvocation records a tool call made while producing response, in
// Pending status, and creates the Invokes edge from the response (spec.md
// §4.E). ToolInvocation carries no session_id, so it is not indexed under
// sn/: a tool invocation's session is only reachable by the longer
// tool→response→prompt→session traversal invariant 1 describes, not by a
// direct back-pointer.
func (e *Engine) AddToolInvocation(ctx context.Context, responseID ids.NodeID, toolName string, parameters map[string]any, required bool, metadata map[string]string) (ids.NodeID, error) {
	responseNode, err := e.getNode(ctx, responseID)
	if err != nil {
		return ids.NodeID{}, err
	}
	if _, ok := responseNode.(*graph.Response); !ok {
		return ids.NodeID{}, xerrors.New(xerrors.InvalidArgument, "engine.AddToolInvocation", "referenced node is not a response")
	}

	now := time.Now().UTC()
	t := &graph.ToolInvocation{
		ID:         ids.NewNodeID(),
		ResponseID: responseID,
		ToolName:   toolName,
		Parameters: parameters,
		Status:     graph.ToolPending,
		Metadata:   metadata,
		CreatedAt:  now,
	}

	order, err := e.nextInvocationOrder(ctx, responseID)
	if err != nil {
		return ids.NodeID{}, err
	}

	if err := e.createNode(ctx, t, ids.SessionID{}, false); err != nil {
		return ids.NodeID{}, err
	}

	edge := graph.NewEdge(ids.NewEdgeID(), responseID, t.ID, graph.InvokesProperties{
		InvocationOrder: order,
		Success:         false,
		Required:        required,
	}, now)
	if err := e.createEdge(ctx, edge); err != nil {
		return ids.NodeID{}, err
	}

	if err := e.store.Put(ctx, responseToolKey(responseID, t.ID), t.ID.Bytes()); err != nil {
		return ids.NodeID{}, xerrors.Wrap(xerrors.Storage, "engine.AddToolInvocation", "write response-tools index", err)
	}

	e.metrics.IncToolsInvoked()
	e.emit(ctx, eventbus.NewToolInvoked(responseID, t.ID, t.ToolName, t.Status, now))
	return t.ID, nil
}

// nextInvocationOrder returns the zero-based invocation_order for the next
// tool invocation recorded against response, derived from the current size
// of its rt/ index rather than a separately persisted counter.
func (e *Engine) nextInvocationOrder(ctx context.Context, response ids.NodeID) (int, error) {
	entries, err := e.store.ScanPrefix(ctx, responseToolsPrefix(response))
	if err != nil {
		return 0, xerrors.Wrap(xerrors.Storage, "engine.nextInvocationOrder", "scan response-tools index", err)
	}
	return len(entries), nil
}

// UpdateToolInvocation transitions id from Pending to its terminal state
// (Success or Failed), per the state machine in spec.md §4.E. Re-applying
// the same terminal state is idempotent. retry_count is never reset by this
// transition (spec.md §9's open question: retries recorded before the
// terminal transition must still be visible afterward).
func (e *Engine) UpdateToolInvocation(ctx context.Context, id ids.NodeID, success bool, result map[string]any, errMsg string, durationMS int64) error {
	node, err := e.getNode(ctx, id)
	if err != nil {
		return err
	}
	t, ok := node.(*graph.ToolInvocation)
	if !ok {
		return xerrors.New(xerrors.InvalidArgument, "engine.UpdateToolInvocation", "node is not a tool invocation")
	}

	newStatus := graph.ToolFailed
	if success {
		newStatus = graph.ToolSuccess
	}

	if t.Status == newStatus {
		return nil // idempotent re-application of the same terminal state
	}
	if t.Status != graph.ToolPending {
		return xerrors.New(xerrors.InvalidArgument, "engine.UpdateToolInvocation", "tool invocation already in a different terminal state")
	}

	t.Status = newStatus
	t.Result = result
	t.Error = errMsg
	t.DurationMS = durationMS

	if err := e.writeNodePrimary(ctx, t); err != nil {
		return err
	}

	e.emit(ctx, eventbus.NewToolInvoked(t.ResponseID, t.ID, t.ToolName, t.Status, time.Now().UTC()))
	return nil
}

// RecordToolRetry increments id's retry_count in place without leaving
// Pending (spec.md's state-machine note: "retry events increment
// retry_count without leaving Pending").
func (e *Engine) RecordToolRetry(ctx context.Context, id ids.NodeID) error {
	node, err := e.getNode(ctx, id)
	if err != nil {
		return err
	}
	t, ok := node.(*graph.ToolInvocation)
	if !ok {
		return xerrors.New(xerrors.InvalidArgument, "engine.RecordToolRetry", "node is not a tool invocation")
	}
	t.RecordRetry()
	return e.writeNodePrimary(ctx, t)
}

// GetResponseTools returns every ToolInvocation recorded against response,
// in invocation order.
func (e *Engine) GetResponseTools(ctx context.Context, response ids.NodeID) ([]*graph.ToolInvocation, error) {
	entries, err := e.store.ScanPrefix(ctx, responseToolsPrefix(response))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Storage, "engine.GetResponseTools", "scan response-tools index", err)
	}

	out := make([]*graph.ToolInvocation, 0, len(entries))
	for _, entry := range entries {
		toolID, err := ids.NodeIDFromBytes(entry.Value)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, "engine.GetResponseTools", "parse tool id", err)
		}
		n, err := e.getNode(ctx, toolID)
		if err != nil {
			return nil, err
		}
		t, ok := n.(*graph.ToolInvocation)
		if !ok {
			return nil, xerrors.New(xerrors.Storage, "engine.GetResponseTools", "response-tools index points at a non-tool node")
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
