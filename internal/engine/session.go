package engine

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// CreateSession creates a fresh Session node with no nodes under it yet
// (spec.md §4.E). A nil metadata/tags map is replaced with an empty one so
// callers never observe a nil map on read-back.
func (e *Engine) CreateSession(ctx context.Context, metadata map[string]string, tags map[string]struct{}) (*graph.Session, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	if tags == nil {
		tags = map[string]struct{}{}
	}

	now := time.Now().UTC()
	s := &graph.Session{
		ID:        ids.NewSessionID(),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
		Tags:      tags,
	}
	if err := e.createNode(ctx, s, ids.SessionID{}, false); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by id, failing NotFound if it doesn't exist
// or the id names a node of a different type.
func (e *Engine) GetSession(ctx context.Context, id ids.SessionID) (*graph.Session, error) {
	n, err := e.getNode(ctx, ids.NodeID(id))
	if err != nil {
		return nil, err
	}
	s, ok := n.(*graph.Session)
	if !ok {
		return nil, wrapNotFound("engine.GetSession", "session")
	}
	return s, nil
}

// touchSession bumps a session's updated_at and rewrites its primary
// record, without re-indexing it under sn/ (a session is never indexed
// under its own sn/ prefix) or incrementing the node-created counters.
func (e *Engine) touchSession(ctx context.Context, id ids.SessionID, at time.Time) error {
	s, err := e.GetSession(ctx, id)
	if err != nil {
		return err
	}
	s.UpdatedAt = at
	return e.writeNodePrimary(ctx, s)
}
