// Package query implements the Query Builder described in spec.md §4.F:
// fluent filter composition over sessions, node types, and time ranges,
// with two execution modes (materialized and streaming) plus a counting
// fast path for session-only queries that counts session index ids without
// deserializing any node. The fluent shape mirrors
// original_source's AsyncQueryBuilder (examples/async_streaming_queries.rs:
// `.session(id).node_type(t).time_range(from,to).offset(n).limit(n)`), but
// the execution strategy is rebuilt around Go's idioms: a pull-based
// channel of Result values instead of a futures::Stream, and a small
// Backend interface (implemented by internal/engine) instead of reaching
// into the KV layer directly, so this package stays free of a dependency
// on internal/kvstore's concrete cursor type.
package query

import (
	"context"
	"time"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// Backend is the slice of the Async Graph Engine the query builder needs:
// ordered session-node id lookup, a full node-id scan for the (rare,
// flagged-expensive) session-less case, and cache-first single-node fetch.
// internal/engine.Engine implements this via a thin adapter so the query
// package never depends on the KV key layout directly.
type Backend interface {
	// SessionNodeIDs returns a session's node ids in insertion order,
	// matching the sn/ secondary index (spec.md §4.D).
	SessionNodeIDs(ctx context.Context, session ids.SessionID) ([]ids.NodeID, error)
	// ScanAllNodes walks every node in the primary table in key order,
	// calling fn for each. fn returning false stops the scan early. Used
	// only when a query carries no session filter (spec.md §4.F: "without
	// session it scans n/; rare; flagged as potentially expensive").
	ScanAllNodes(ctx context.Context, fn func(graph.Node) (bool, error)) error
	// GetNode is the cache-first single-node fetch shared with the rest of
	// the engine's read path.
	GetNode(ctx context.Context, id ids.NodeID) (graph.Node, error)
	// RecordQueryExecuted emits a QueryExecuted event and bumps the
	// queries_executed metric; called once per Execute/ExecuteStream/Count.
	RecordQueryExecuted(ctx context.Context, session ids.SessionID, resultCount int, streaming bool)
}

// filter holds the fluent predicates accumulated by Builder. Predicates
// compose by conjunction (spec.md §4.F).
type filter struct {
	session     ids.SessionID
	hasSession  bool
	nodeType    graph.NodeType
	hasNodeType bool
	from, to    time.Time
	hasTimeRng  bool
	offset      int
	limit       int
	hasLimit    bool
}

func (f filter) matches(n graph.Node) bool {
	if f.hasNodeType && n.Type() != f.nodeType {
		return false
	}
	if f.hasTimeRng {
		created := n.Created()
		if created.Before(f.from) || created.After(f.to) {
			return false
		}
	}
	return true
}

// Builder accumulates filters and executes them against Backend. A
// Builder is not safe for concurrent use (its fluent setters mutate in
// place), matching the single-goroutine-builds-then-executes usage every
// caller in spec.md's scenarios follows.
type Builder struct {
	backend Backend
	f       filter
}

// New constructs a Builder with no predicates set, bound to backend.
func New(backend Backend) *Builder {
	return &Builder{backend: backend}
}

// Session restricts results to session's nodes, in insertion order
// (spec.md §4.F).
func (b *Builder) Session(id ids.SessionID) *Builder {
	b.f.session, b.f.hasSession = id, true
	return b
}

// NodeType restricts results to nodes of the given type.
func (b *Builder) NodeType(t graph.NodeType) *Builder {
	b.f.nodeType, b.f.hasNodeType = t, true
	return b
}

// TimeRange restricts results to nodes created within [from, to], inclusive.
func (b *Builder) TimeRange(from, to time.Time) *Builder {
	b.f.from, b.f.to, b.f.hasTimeRng = from, to, true
	return b
}

// Offset skips the first n matching results.
func (b *Builder) Offset(n int) *Builder {
	b.f.offset = n
	return b
}

// Limit caps the number of results returned/streamed.
func (b *Builder) Limit(n int) *Builder {
	b.f.limit, b.f.hasLimit = n, true
	return b
}

// candidateIDs returns the ordered node ids to scan: a session's sn/
// index when a session filter is present, or the full primary table
// otherwise (spec.md §4.F: "without session it scans n/; rare; flagged as
// potentially expensive" — callers should prefer a session filter).
func (b *Builder) candidateIDs(ctx context.Context) ([]ids.NodeID, error) {
	if b.f.hasSession {
		return b.backend.SessionNodeIDs(ctx, b.f.session)
	}
	var out []ids.NodeID
	err := b.backend.ScanAllNodes(ctx, func(n graph.Node) (bool, error) {
		out = append(out, n.NodeID())
		return true, nil
	})
	return out, err
}

// Execute runs the query to completion and returns every matching node,
// per spec.md §4.F's materialized execution mode. Ordering: session-insertion
// order when a session filter is present, otherwise the backend's stable
// (but spec-unspecified) scan order, ties broken by node id bytes is the
// backend's concern for the session-less path since sn/ keys are already
// id-terminated and unique.
func (b *Builder) Execute(ctx context.Context) ([]graph.Node, error) {
	ids_, err := b.candidateIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]graph.Node, 0, len(ids_))
	skipped := 0
	for _, id := range ids_ {
		if b.f.hasLimit && len(out) >= b.f.limit {
			break
		}
		n, err := b.backend.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if !b.f.matches(n) {
			continue
		}
		if skipped < b.f.offset {
			skipped++
			continue
		}
		out = append(out, n)
	}

	b.backend.RecordQueryExecuted(ctx, b.f.session, len(out), false)
	return out, nil
}

// Result is one item of an ExecuteStream sequence: either a node or an
// error observed while fetching/decoding it (spec.md §7: "Stream iteration
// yields Result<Item>; consumer decides whether to stop or skip").
type Result struct {
	Node graph.Node
	Err  error
}

// ExecuteStream returns a lazy, back-pressured sequence of matching nodes
// (spec.md §4.F). The returned channel is fed by a goroutine that fetches
// and filters one node at a time — never more than Limit()+the session
// index's lightweight id list are read before the consumer has pulled
// enough items — so dropping the channel (letting it go out of scope after
// cancelling ctx) stops the underlying work at the next suspension point,
// per spec.md §5's cancellation contract. The session-index id list itself
// (cheap: one NodeID per entry, no value deserialization) is the bounded
// "small constant" overread spec.md §8's S4 scenario allows; with a session
// filter, full node bodies beyond the requested window are never fetched.
// Without a session filter the id list comes from a full ScanAllNodes pass
// that decodes every node in the store before the first item is sent.
func (b *Builder) ExecuteStream(ctx context.Context) <-chan Result {
	out := make(chan Result)
	go b.stream(ctx, out)
	return out
}

func (b *Builder) stream(ctx context.Context, out chan<- Result) {
	defer close(out)

	candidateIDs, err := b.candidateIDs(ctx)
	if err != nil {
		select {
		case out <- Result{Err: err}:
		case <-ctx.Done():
		}
		return
	}

	sent := 0
	skipped := 0
	for _, id := range candidateIDs {
		if b.f.hasLimit && sent >= b.f.limit {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := b.backend.GetNode(ctx, id)
		if err != nil {
			select {
			case out <- Result{Err: err}:
			case <-ctx.Done():
				return
			}
			continue
		}
		if !b.f.matches(n) {
			continue
		}
		if skipped < b.f.offset {
			skipped++
			continue
		}

		select {
		case out <- Result{Node: n}:
			sent++
		case <-ctx.Done():
			return
		}
	}

	b.backend.RecordQueryExecuted(ctx, b.f.session, sent, true)
}

// Count returns the number of matching nodes, per spec.md §4.F. With no
// predicate beyond Session, it returns the length of the session index's
// id list (no node deserialization); that list is read by a prefix scan,
// so the cost grows with the session's size and is not constant-time.
// With any other predicate it falls back
// to a streaming count that still avoids materializing a result slice.
func (b *Builder) Count(ctx context.Context) (int, error) {
	if b.f.hasSession && !b.f.hasNodeType && !b.f.hasTimeRng && b.f.offset == 0 && !b.f.hasLimit {
		ids_, err := b.backend.SessionNodeIDs(ctx, b.f.session)
		if err != nil {
			return 0, err
		}
		n := len(ids_)
		b.backend.RecordQueryExecuted(ctx, b.f.session, n, false)
		return n, nil
	}

	candidateIDs, err := b.candidateIDs(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	skipped := 0
	for _, id := range candidateIDs {
		if b.f.hasLimit && count >= b.f.limit {
			break
		}
		n, err := b.backend.GetNode(ctx, id)
		if err != nil {
			return 0, err
		}
		if !b.f.matches(n) {
			continue
		}
		if skipped < b.f.offset {
			skipped++
			continue
		}
		count++
	}

	b.backend.RecordQueryExecuted(ctx, b.f.session, count, false)
	return count, nil
}
