// Package cache implements the read-through LRU+TTL cache described in
// spec.md §4.C: two independent caches, one for nodes and one for edges,
// each with a capacity (entry count) and a TTL. Lookups and inserts are
// async-safe and cheap to call from many concurrent tasks; invalidation is
// explicit on update/delete, matching original_source's cache.rs (backed
// there by moka, an async LRU+TTL cache). github.com/hashicorp/golang-lru/v2
// is the Go analog used here — it is already an indirect dependency of the
// teacher's go.mod, and several pack repos (including the teacher itself)
// reach for it for exactly this read-through role.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// entry wraps a cached value with the time it was inserted, so Get can
// evict on TTL expiry without a background sweeper.
type entry[V any] struct {
	value    V
	insertedAt time.Time
}

// typedCache is a generic LRU+TTL cache shared by the node and edge caches
// below. It is not exported: Cache composes two typed instances rather
// than exposing a bare generic cache, since spec.md §4.C specifies exactly
// two caches with entity-specific key types.
type typedCache[K comparable, V any] struct {
	mu  sync.Mutex
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration

	hits   int64
	misses int64
}

func newTypedCache[K comparable, V any](capacity int, ttl time.Duration) *typedCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	c, _ := lru.New[K, entry[V]](capacity)
	return &typedCache[K, V]{lru: c, ttl: ttl}
}

func (c *typedCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	if c.ttl > 0 && time.Since(e.insertedAt) > c.ttl {
		c.lru.Remove(key)
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

func (c *typedCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{value: value, insertedAt: time.Now()})
}

func (c *typedCache[K, V]) remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

func (c *typedCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *typedCache[K, V]) hitsMisses() (int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Option configures a Cache at construction.
type Option func(*options)

type options struct {
	nodeCapacity int
	edgeCapacity int
	ttl          time.Duration
}

// WithCapacity sets the entry capacity for both the node and edge caches.
func WithCapacity(n int) Option {
	return func(o *options) { o.nodeCapacity, o.edgeCapacity = n, n }
}

// WithNodeCapacity sets the node cache's entry capacity independently.
func WithNodeCapacity(n int) Option { return func(o *options) { o.nodeCapacity = n } }

// WithEdgeCapacity sets the edge cache's entry capacity independently.
func WithEdgeCapacity(n int) Option { return func(o *options) { o.edgeCapacity = n } }

// WithTTL sets the time-to-live applied to both caches.
func WithTTL(ttl time.Duration) Option { return func(o *options) { o.ttl = ttl } }

// Cache is the read-through node+edge cache. A Cache value is a shared
// reference: copying the struct (it is always handed out as *Cache) does
// not clone the underlying LRUs, so every holder of a *Cache observes the
// same entries, per spec.md §4.C ("clonable by shared reference").
type Cache struct {
	nodes *typedCache[ids.NodeID, graph.Node]
	edges *typedCache[ids.EdgeID, graph.Edge]
}

// New constructs a Cache with the given options. Defaults match spec.md
// §6's documented defaults: 10,000 entries per cache, 300s TTL.
func New(opts ...Option) *Cache {
	o := options{nodeCapacity: 10_000, edgeCapacity: 10_000, ttl: 300 * time.Second}
	for _, apply := range opts {
		apply(&o)
	}
	return &Cache{
		nodes: newTypedCache[ids.NodeID, graph.Node](o.nodeCapacity, o.ttl),
		edges: newTypedCache[ids.EdgeID, graph.Edge](o.edgeCapacity, o.ttl),
	}
}

// GetNode returns the cached node for id, if present and unexpired.
// Suspends at no point today (the LRU is in-process) but takes a context
// for symmetry with the rest of the async API and to leave room for a
// future out-of-process cache tier.
func (c *Cache) GetNode(_ context.Context, id ids.NodeID) (graph.Node, bool) {
	return c.nodes.get(id)
}

// PutNode inserts or refreshes a node in the cache. Fire-and-forget from
// the write path, per spec.md §4.C.
func (c *Cache) PutNode(_ context.Context, n graph.Node) {
	c.nodes.put(n.NodeID(), n)
}

// InvalidateNode explicitly evicts id from the node cache.
func (c *Cache) InvalidateNode(_ context.Context, id ids.NodeID) {
	c.nodes.remove(id)
}

// GetEdge returns the cached edge for id, if present and unexpired.
func (c *Cache) GetEdge(_ context.Context, id ids.EdgeID) (graph.Edge, bool) {
	return c.edges.get(id)
}

// PutEdge inserts or refreshes an edge in the cache.
func (c *Cache) PutEdge(_ context.Context, e graph.Edge) {
	c.edges.put(e.ID, e)
}

// InvalidateEdge explicitly evicts id from the edge cache.
func (c *Cache) InvalidateEdge(_ context.Context, id ids.EdgeID) {
	c.edges.remove(id)
}

// Stats is the entry-count and hit/miss snapshot returned by Stats.
type Stats struct {
	NodeEntries int
	EdgeEntries int
	NodeHits    int64
	NodeMisses  int64
	EdgeHits    int64
	EdgeMisses  int64
}

// Stats drains pending async maintenance (none is buffered today; the LRU
// operations above are synchronous under the cache's own lock) and returns
// a snapshot of entry counts and optional hit/miss counters, per spec.md
// §4.C ("entry counts are always exposed via a stats() snapshot that first
// drains pending async maintenance").
func (c *Cache) Stats(_ context.Context) Stats {
	nodeHits, nodeMisses := c.nodes.hitsMisses()
	edgeHits, edgeMisses := c.edges.hitsMisses()
	return Stats{
		NodeEntries: c.nodes.len(),
		EdgeEntries: c.edges.len(),
		NodeHits:    nodeHits,
		NodeMisses:  nodeMisses,
		EdgeHits:    edgeHits,
		EdgeMisses:  edgeMisses,
	}
}
