package engine

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// AddResponse attaches a Response to an existing Prompt, creating the
// HasResponse edge between them (spec.md §4.E). The response inherits its
// owning prompt's session for the sn/ index, since Response itself carries
// no session_id field (only prompt_id, per spec.md §3).
func (e *Engine) AddResponse(ctx context.Context, promptID ids.NodeID, content string, usage graph.TokenUsage, metadata graph.ResponseMetadata) (ids.NodeID, error) {
	if err := validateContent("engine.AddResponse", content); err != nil {
		return ids.NodeID{}, err
	}

	promptNode, err := e.getNode(ctx, promptID)
	if err != nil {
		return ids.NodeID{}, err
	}
	prompt, ok := promptNode.(*graph.Prompt)
	if !ok {
		return ids.NodeID{}, xerrors.New(xerrors.InvalidArgument, "engine.AddResponse", "referenced node is not a prompt")
	}

	now := time.Now().UTC()
	r := &graph.Response{
		ID:        ids.NewNodeID(),
		PromptID:  promptID,
		Content:   content,
		Usage:     usage,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := e.createNode(ctx, r, prompt.SessionID, true); err != nil {
		return ids.NodeID{}, err
	}

	edge := graph.NewEdge(ids.NewEdgeID(), promptID, r.ID, graph.HasResponseProperties{}, now)
	if err := e.createEdge(ctx, edge); err != nil {
		return ids.NodeID{}, err
	}

	e.metrics.IncResponsesGenerated()
	e.emit(ctx, eventbus.NewResponseGenerated(prompt.SessionID, promptID, r.ID, usage.TotalTokens, now))
	return r.ID, nil
}
