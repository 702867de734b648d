// Package pool implements the optional connection-pool layer described in
// spec.md §4.I: a bound on concurrent handles to the KV backend, so bursty
// load can't pile up unbounded I/O parallelism against a single shared
// Store. golang.org/x/sync/semaphore is a direct teacher dependency
// (go.mod); it is the idiomatic Go stand-in for a bounded-permit pool,
// playing the same role original_source's pooled_backend.rs gives its
// semaphore-gated connection pool.
package pool

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/lineagegraph/internal/kvstore"
)

// Pool bounds concurrent access to a shared *kvstore.Store. It is not
// required for correctness — a single shared Store handle is already safe
// for concurrent use — but bounds how many callers may be mid-operation
// against it at once, per spec.md §4.I.
type Pool struct {
	store *kvstore.Store
	sem   *semaphore.Weighted
	size  int64

	active int64 // atomic
	idle   int64 // atomic

	totalWaitNS atomic.Int64
	acquires    atomic.Int64
}

// New constructs a Pool bounding concurrent access to store to size permits.
func New(store *kvstore.Store, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{store: store, sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
	p.idle = p.size
	return p
}

// Handle is a leased permit on the pool's backend. Release must be called
// exactly once on every exit path, per spec.md §4.I ("acquire a permit,
// perform work, release on all exit paths").
type Handle struct {
	pool  *Pool
	store *kvstore.Store
}

// Store returns the backend this handle leases access to.
func (h *Handle) Store() *kvstore.Store { return h.store }

// Release returns the permit to the pool. Safe to call at most once; a
// second call would double-release the semaphore, so callers should guard
// with sync.Once or defer discipline the way the teacher's own daemon code
// does around its connection limiter.
func (h *Handle) Release() {
	h.pool.sem.Release(1)
	atomic.AddInt64(&h.pool.active, -1)
	atomic.AddInt64(&h.pool.idle, 1)
}

// Acquire blocks (respecting ctx) until a permit is available, then returns
// a Handle. The caller must call Handle.Release on every exit path.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.totalWaitNS.Add(int64(time.Since(start)))
	p.acquires.Add(1)
	atomic.AddInt64(&p.active, 1)
	atomic.AddInt64(&p.idle, -1)
	return &Handle{pool: p, store: p.store}, nil
}

// Snapshot is the pool metrics shape from spec.md §4.I / SPEC_FULL §3
// (the original implementation's PoolMetricsSnapshot), extended here with
// the pool Size. WaitTimeNs is an average over all acquires; no per-call
// wait time is kept.
type Snapshot struct {
	Active     int64
	Idle       int64
	Size       int64
	WaitTimeNs int64 // most recent Acquire's wait time is not tracked per-call; this is the running average
}

// Snapshot reports the pool's current active/idle counts and average
// acquire wait time, matching original_source's pooled_backend.rs
// PoolMetricsSnapshot shape (SPEC_FULL §3, "Supplemented features").
func (p *Pool) Snapshot() Snapshot {
	acquires := p.acquires.Load()
	var avgWaitNS int64
	if acquires > 0 {
		avgWaitNS = p.totalWaitNS.Load() / acquires
	}
	return Snapshot{
		Active:     atomic.LoadInt64(&p.active),
		Idle:       atomic.LoadInt64(&p.idle),
		Size:       p.size,
		WaitTimeNs: avgWaitNS,
	}
}
