package engine

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// AddPrompt appends a Prompt to session, chaining a Follows edge from the
// session's previous prompt or response (if any), per spec.md §4.E. The
// per-session lock serializes the "find the previous node" read against
// concurrent writers into the same session, since the backend offers only
// single-key atomicity (spec.md §4.A).
func (e *Engine) AddPrompt(ctx context.Context, session ids.SessionID, content string, metadata graph.PromptMetadata) (ids.NodeID, error) {
	if err := validateContent("engine.AddPrompt", content); err != nil {
		return ids.NodeID{}, err
	}

	lock := e.sessionLock(session)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.GetSession(ctx, session); err != nil {
		return ids.NodeID{}, err
	}

	prev, err := e.lastSessionNode(ctx, session)
	if err != nil {
		return ids.NodeID{}, err
	}

	now := time.Now().UTC()
	p := &graph.Prompt{
		ID:        ids.NewNodeID(),
		SessionID: session,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := e.createNode(ctx, p, session, true); err != nil {
		return ids.NodeID{}, err
	}

	if !prev.IsZero() {
		edge := graph.NewEdge(ids.NewEdgeID(), prev, p.ID, graph.FollowsProperties{}, now)
		if err := e.createEdge(ctx, edge); err != nil {
			return ids.NodeID{}, err
		}
	}

	e.metrics.IncPromptsSubmitted()
	e.emit(ctx, eventbus.NewPromptSubmitted(session, p.ID, now))
	return p.ID, nil
}

// AddPromptsBatch adds every (content, metadata) pair to session in order,
// stopping at the first failure. Per spec.md §4.E this is best-effort: on
// error, prompts already written remain (no compensating rollback).
func (e *Engine) AddPromptsBatch(ctx context.Context, session ids.SessionID, prompts []PromptInput) ([]ids.NodeID, error) {
	out := make([]ids.NodeID, 0, len(prompts))
	for _, p := range prompts {
		id, err := e.AddPrompt(ctx, session, p.Content, p.Metadata)
		if err != nil {
			return out, err
		}
		out = append(out, id)
	}
	return out, nil
}

// PromptInput is one element of an AddPromptsBatch call.
type PromptInput struct {
	Content  string
	Metadata graph.PromptMetadata
}
