package engine

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/query"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// Query returns a fresh query.Builder bound to this engine, per spec.md
// §4.E/§4.F. Each call starts with no predicates set.
func (e *Engine) Query() *query.Builder {
	return query.New((*queryBackend)(e))
}

// queryBackend adapts *Engine to query.Backend. Defined as a distinct named
// type (rather than handing out *Engine itself) so the query package's
// surface onto the engine stays exactly the four methods below, not the
// whole of Engine's exported API.
type queryBackend Engine

func (b *queryBackend) engine() *Engine { return (*Engine)(b) }

// SessionNodeIDs returns session's sn/-indexed node ids in insertion order,
// without deserializing each node (query.Builder.Count's session-only fast
// path depends on this staying cheap). It is a prefix scan over the sn/
// index, linear in the number of session entries.
func (b *queryBackend) SessionNodeIDs(ctx context.Context, session ids.SessionID) ([]ids.NodeID, error) {
	e := b.engine()
	entries, err := e.store.ScanPrefix(ctx, sessionNodesPrefix(session))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Storage, "query.SessionNodeIDs", "scan session index", err)
	}
	out := make([]ids.NodeID, 0, len(entries))
	for _, entry := range entries {
		id, err := ids.NodeIDFromBytes(entry.Value)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.Serialization, "query.SessionNodeIDs", "parse node id", err)
		}
		out = append(out, id)
	}
	return out, nil
}

// ScanAllNodes walks the primary n/ table in key order, deserializing each
// node and handing it to fn. This is the session-less query path spec.md
// §4.F flags as potentially expensive: every node's full body is read and
// decoded, not just its id.
func (b *queryBackend) ScanAllNodes(ctx context.Context, fn func(graph.Node) (bool, error)) error {
	e := b.engine()
	return e.store.ScanPrefixFunc(ctx, []byte(prefixNode), func(_, value []byte) (bool, error) {
		n, err := e.serializer.DeserializeNode(value)
		if err != nil {
			return false, err
		}
		return fn(n)
	})
}

// GetNode delegates to the engine's cache-first node lookup.
func (b *queryBackend) GetNode(ctx context.Context, id ids.NodeID) (graph.Node, error) {
	return b.engine().getNode(ctx, id)
}

// RecordQueryExecuted bumps queries_executed and emits a QueryExecuted
// event, per spec.md §4.G/§4.H.
func (b *queryBackend) RecordQueryExecuted(ctx context.Context, session ids.SessionID, resultCount int, streaming bool) {
	e := b.engine()
	e.metrics.IncQueriesExecuted()
	e.emit(ctx, eventbus.NewQueryExecuted(session, resultCount, streaming, time.Now().UTC()))
}
