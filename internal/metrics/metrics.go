// Package metrics implements the lock-free counters and rolling latency
// sums described in spec.md §4.H. Every increment is a single atomic op;
// nothing in this package blocks or allocates on the hot path. Snapshot
// values may trail real time by one increment under heavy concurrency,
// per spec.md §5's relaxed-ordering note — this package does not attempt
// to present a consistent multi-field view.
//
// original_source's observatory/metrics.rs backs this with AtomicUsize/
// AtomicU64 fields and no external metrics library; this package follows
// that directly rather than reaching for an exposition library, since
// spec.md §1 places Prometheus exposition itself out of scope (see
// DESIGN.md for the explicit stdlib justification).
package metrics

import "sync/atomic"

// Core holds the process-wide atomic counters and latency sums for one
// engine instance. The zero value is ready to use.
type Core struct {
	nodesCreated      atomic.Int64
	edgesCreated      atomic.Int64
	promptsSubmitted  atomic.Int64
	responsesGenerated atomic.Int64
	toolsInvoked      atomic.Int64
	queriesExecuted   atomic.Int64

	totalWriteLatencyUS atomic.Int64
	writeCount          atomic.Int64
	totalReadLatencyUS  atomic.Int64
	readCount           atomic.Int64
}

// New returns a ready-to-use Core.
func New() *Core { return &Core{} }

func (c *Core) IncNodesCreated()       { c.nodesCreated.Add(1) }
func (c *Core) IncEdgesCreated()       { c.edgesCreated.Add(1) }
func (c *Core) IncPromptsSubmitted()   { c.promptsSubmitted.Add(1) }
func (c *Core) IncResponsesGenerated() { c.responsesGenerated.Add(1) }
func (c *Core) IncToolsInvoked()       { c.toolsInvoked.Add(1) }
func (c *Core) IncQueriesExecuted()    { c.queriesExecuted.Add(1) }

// RecordWrite adds one write observation of the given latency in
// microseconds to the running sum.
func (c *Core) RecordWrite(latencyUS int64) {
	c.totalWriteLatencyUS.Add(latencyUS)
	c.writeCount.Add(1)
}

// RecordRead adds one read observation of the given latency in
// microseconds to the running sum.
func (c *Core) RecordRead(latencyUS int64) {
	c.totalReadLatencyUS.Add(latencyUS)
	c.readCount.Add(1)
}

// Snapshot is a point-in-time read of every counter plus derived average
// latencies, per spec.md §4.H ("Snapshot computes average latencies on
// demand").
type Snapshot struct {
	NodesCreated       int64
	EdgesCreated       int64
	PromptsSubmitted   int64
	ResponsesGenerated int64
	ToolsInvoked       int64
	QueriesExecuted    int64

	AvgWriteLatencyUS float64
	WriteCount        int64
	AvgReadLatencyUS  float64
	ReadCount         int64
}

// Snapshot takes a consistent-enough-for-observability read of every field.
// Each atomic load is independent, so a concurrent writer may be observed
// mid-update across two fields; this is the documented relaxed-ordering
// trade-off in spec.md §5, not a bug.
func (c *Core) Snapshot() Snapshot {
	writeCount := c.writeCount.Load()
	readCount := c.readCount.Load()

	s := Snapshot{
		NodesCreated:       c.nodesCreated.Load(),
		EdgesCreated:       c.edgesCreated.Load(),
		PromptsSubmitted:   c.promptsSubmitted.Load(),
		ResponsesGenerated: c.responsesGenerated.Load(),
		ToolsInvoked:       c.toolsInvoked.Load(),
		QueriesExecuted:    c.queriesExecuted.Load(),
		WriteCount:         writeCount,
		ReadCount:          readCount,
	}
	if writeCount > 0 {
		s.AvgWriteLatencyUS = float64(c.totalWriteLatencyUS.Load()) / float64(writeCount)
	}
	if readCount > 0 {
		s.AvgReadLatencyUS = float64(c.totalReadLatencyUS.Load()) / float64(readCount)
	}
	return s
}
