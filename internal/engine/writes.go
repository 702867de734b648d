package engine

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// maxContentBytes bounds Prompt/Response content, per spec.md §4.E
// ("validates non-empty content ≤ 1 MiB").
const maxContentBytes = 1 << 20

func validateContent(op, content string) error {
	if content == "" {
		return xerrors.New(xerrors.InvalidArgument, op, "content must not be empty")
	}
	if len(content) > maxContentBytes {
		return xerrors.New(xerrors.InvalidArgument, op, "content exceeds the 1 MiB limit")
	}
	return nil
}

// writeNodePrimary encodes n and writes its n/ record, refreshing the
// cache. It does not touch the sn/ session index or emit NodeCreated,
// since callers that merely update an existing node (tool-invocation
// transitions, template usage bumps) must not re-trigger either.
func (e *Engine) writeNodePrimary(ctx context.Context, n graph.Node) error {
	data, err := e.serializer.SerializeNode(n)
	if err != nil {
		return xerrors.Wrap(xerrors.Serialization, "engine.writeNodePrimary", "encode node", err)
	}
	if err := e.store.Put(ctx, nodeKey(n.NodeID()), data); err != nil {
		return err
	}
	e.cache.PutNode(ctx, n)
	return nil
}

// createNode persists a brand-new node: its primary record, an sn/ session
// index entry when indexBySession is set, a metrics increment, and a
// NodeCreated event (spec.md §4.D's write-ordering: primary first, index
// second).
func (e *Engine) createNode(ctx context.Context, n graph.Node, session ids.SessionID, indexBySession bool) error {
	start := time.Now()
	if err := e.writeNodePrimary(ctx, n); err != nil {
		return err
	}
	if indexBySession {
		key := sessionNodeKey(session, nodeCreatedAt(n), n.NodeID())
		if err := e.store.Put(ctx, key, n.NodeID().Bytes()); err != nil {
			return xerrors.Wrap(xerrors.Storage, "engine.createNode", "write session index", err)
		}
	}
	e.metrics.IncNodesCreated()
	e.metrics.RecordWrite(time.Since(start).Microseconds())
	e.emit(ctx, eventbus.NewNodeCreated(n.NodeID(), n.Type(), n.Created()))
	return nil
}

// createEdge persists a brand-new edge: its primary record plus both the
// outgoing and incoming secondary-index entries, a metrics increment, and
// an EdgeCreated event.
func (e *Engine) createEdge(ctx context.Context, ed graph.Edge) error {
	start := time.Now()
	data, err := e.serializer.SerializeEdge(ed)
	if err != nil {
		return xerrors.Wrap(xerrors.Serialization, "engine.createEdge", "encode edge", err)
	}
	if err := e.store.Put(ctx, edgeKey(ed.ID), data); err != nil {
		return err
	}
	if err := e.store.Put(ctx, outgoingEdgeKey(ed.From, ed.ID), ed.ID.Bytes()); err != nil {
		return xerrors.Wrap(xerrors.Storage, "engine.createEdge", "write outgoing index", err)
	}
	if err := e.store.Put(ctx, incomingEdgeKey(ed.To, ed.ID), ed.ID.Bytes()); err != nil {
		return xerrors.Wrap(xerrors.Storage, "engine.createEdge", "write incoming index", err)
	}
	e.cache.PutEdge(ctx, ed)
	e.metrics.IncEdgesCreated()
	e.metrics.RecordWrite(time.Since(start).Microseconds())
	e.emit(ctx, eventbus.NewEdgeCreated(ed.ID, ed.Type, ed.From, ed.To, ed.CreatedAt))
	return nil
}

// getNode is the cache-first node lookup shared by every read operation.
func (e *Engine) getNode(ctx context.Context, id ids.NodeID) (graph.Node, error) {
	start := time.Now()
	if n, ok := e.cache.GetNode(ctx, id); ok {
		e.metrics.RecordRead(time.Since(start).Microseconds())
		return n, nil
	}

	data, err := e.store.Get(ctx, nodeKey(id))
	if err != nil {
		if xerrors.OfKind(err, xerrors.NotFound) {
			return nil, wrapNotFound("engine.getNode", "node")
		}
		return nil, err
	}
	n, err := e.serializer.DeserializeNode(data)
	if err != nil {
		return nil, err
	}
	e.cache.PutNode(ctx, n)
	e.metrics.RecordRead(time.Since(start).Microseconds())
	return n, nil
}

// getEdge is the cache-first edge lookup shared by every read operation.
func (e *Engine) getEdge(ctx context.Context, id ids.EdgeID) (graph.Edge, error) {
	start := time.Now()
	if ed, ok := e.cache.GetEdge(ctx, id); ok {
		e.metrics.RecordRead(time.Since(start).Microseconds())
		return ed, nil
	}

	data, err := e.store.Get(ctx, edgeKey(id))
	if err != nil {
		if xerrors.OfKind(err, xerrors.NotFound) {
			return graph.Edge{}, wrapNotFound("engine.getEdge", "edge")
		}
		return graph.Edge{}, err
	}
	ed, err := e.serializer.DeserializeEdge(data)
	if err != nil {
		return graph.Edge{}, err
	}
	e.cache.PutEdge(ctx, ed)
	e.metrics.RecordRead(time.Since(start).Microseconds())
	return ed, nil
}

// lastSessionNode returns the most recently inserted node id in session's
// sn/ index, or the zero NodeID if the session has no nodes yet. Session
// index entries are ordered by big-endian created_at, so the last scan
// entry is the most recent insert.
func (e *Engine) lastSessionNode(ctx context.Context, session ids.SessionID) (ids.NodeID, error) {
	entries, err := e.store.ScanPrefix(ctx, sessionNodesPrefix(session))
	if err != nil {
		return ids.NodeID{}, xerrors.Wrap(xerrors.Storage, "engine.lastSessionNode", "scan session index", err)
	}
	if len(entries) == 0 {
		return ids.NodeID{}, nil
	}
	last := entries[len(entries)-1]
	id, err := ids.NodeIDFromBytes(last.Value)
	if err != nil {
		return ids.NodeID{}, xerrors.Wrap(xerrors.Serialization, "engine.lastSessionNode", "parse node id", err)
	}
	return id, nil
}
