package engine

import (
	"context"
	"sort"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// GetNode fetches a node by id, cache-first (spec.md §4.E).
func (e *Engine) GetNode(ctx context.Context, id ids.NodeID) (graph.Node, error) {
	return e.getNode(ctx, id)
}

// GetEdge fetches an edge by id, cache-first (spec.md §4.E).
func (e *Engine) GetEdge(ctx context.Context, id ids.EdgeID) (graph.Edge, error) {
	return e.getEdge(ctx, id)
}

// GetSessionNodes returns every node indexed under session's sn/ prefix
// (currently Prompt and Response nodes), sorted by
// created_at, per spec.md §4.D/§4.E.
func (e *Engine) GetSessionNodes(ctx context.Context, session ids.SessionID) ([]graph.Node, error) {
	entries, err := e.store.ScanPrefix(ctx, sessionNodesPrefix(session))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Storage, "engine.GetSessionNodes", "scan session index", err)
	}

	out := make([]graph.Node, 0, len(entries))
	for _, entry := range entries {
		id, err := ids.NodeIDFromBytes(entry.Value)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, "engine.GetSessionNodes", "parse node id", err)
		}
		n, err := e.getNode(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	// entries already come back in sn/ key order (big-endian created_at),
	// but re-sort defensively so callers get invariant 2's ordering
	// guarantee even if the index and a node's own timestamp ever drift.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created().Before(out[j].Created())
	})
	return out, nil
}

// GetOutgoingEdges returns every edge whose From is node.
func (e *Engine) GetOutgoingEdges(ctx context.Context, node ids.NodeID) ([]graph.Edge, error) {
	return e.scanEdges(ctx, outgoingEdgesPrefix(node), "engine.GetOutgoingEdges")
}

// GetIncomingEdges returns every edge whose To is node.
func (e *Engine) GetIncomingEdges(ctx context.Context, node ids.NodeID) ([]graph.Edge, error) {
	return e.scanEdges(ctx, incomingEdgesPrefix(node), "engine.GetIncomingEdges")
}

func (e *Engine) scanEdges(ctx context.Context, prefix []byte, op string) ([]graph.Edge, error) {
	entries, err := e.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Storage, op, "scan edge index", err)
	}
	out := make([]graph.Edge, 0, len(entries))
	for _, entry := range entries {
		id, err := ids.EdgeIDFromBytes(entry.Value)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, op, "parse edge id", err)
		}
		ed, err := e.getEdge(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ed)
	}
	return out, nil
}

// DeleteNode removes node's primary record, its sn/ session index entry (if
// present), and both endpoints of every edge touching it from the
// secondary indexes, per spec.md §3's lifecycle note ("deleting a node
// removes its primary record and both endpoints of all its edges from the
// secondary indexes"). The node's own edges (primary e/ records) are left
// in place; only the index pointers are removed, matching the KV backend's
// lack of a multi-key transaction (spec.md §4.A).
func (e *Engine) DeleteNode(ctx context.Context, id ids.NodeID) error {
	n, err := e.getNode(ctx, id)
	if err != nil {
		if xerrors.OfKind(err, xerrors.NotFound) {
			return nil
		}
		return err
	}

	out, err := e.scanEdges(ctx, outgoingEdgesPrefix(id), "engine.DeleteNode")
	if err != nil {
		return err
	}
	for _, ed := range out {
		if err := e.store.Delete(ctx, outgoingEdgeKey(ed.From, ed.ID)); err != nil {
			return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete outgoing index entry", err)
		}
		if err := e.store.Delete(ctx, incomingEdgeKey(ed.To, ed.ID)); err != nil {
			return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete incoming index entry", err)
		}
	}

	in, err := e.scanEdges(ctx, incomingEdgesPrefix(id), "engine.DeleteNode")
	if err != nil {
		return err
	}
	for _, ed := range in {
		if err := e.store.Delete(ctx, outgoingEdgeKey(ed.From, ed.ID)); err != nil {
			return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete outgoing index entry", err)
		}
		if err := e.store.Delete(ctx, incomingEdgeKey(ed.To, ed.ID)); err != nil {
			return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete incoming index entry", err)
		}
	}

	switch v := n.(type) {
	case *graph.Prompt:
		if err := e.store.Delete(ctx, sessionNodeKey(v.SessionID, v.CreatedAt.UnixNano(), v.ID)); err != nil {
			return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete session index entry", err)
		}
	case *graph.Response:
		promptNode, err := e.getNode(ctx, v.PromptID)
		if err == nil {
			if prompt, ok := promptNode.(*graph.Prompt); ok {
				if err := e.store.Delete(ctx, sessionNodeKey(prompt.SessionID, v.CreatedAt.UnixNano(), v.ID)); err != nil {
					return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete session index entry", err)
				}
			}
		}
	}

	if err := e.store.Delete(ctx, nodeKey(id)); err != nil {
		return xerrors.Wrap(xerrors.Storage, "engine.DeleteNode", "delete primary record", err)
	}
	e.cache.InvalidateNode(ctx, id)
	return nil
}
