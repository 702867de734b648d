package eventbus

import (
	"context"
	"fmt"
	"sync"
)

// MultiEventStream composes several EventStream sinks behind one Publisher:
// Publish fans out to every sink concurrently and fails iff any sink
// fails; Subscribe returns the first stream's subscription by convention
// (spec.md §4.G). AddStream lets sinks be attached after construction,
// matching original_source's combinator (SPEC_FULL §3, "Supplemented
// features").
type MultiEventStream struct {
	mu      sync.RWMutex
	streams []*EventStream
}

// NewMultiEventStream composes the given streams. At least one stream may
// be supplied later via AddStream if none are known yet.
func NewMultiEventStream(streams ...*EventStream) *MultiEventStream {
	out := make([]*EventStream, len(streams))
	copy(out, streams)
	return &MultiEventStream{streams: out}
}

// AddStream appends a sink after construction.
func (m *MultiEventStream) AddStream(s *EventStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, s)
}

// Publish fans out to every composed stream concurrently and returns an
// error iff any sink's publish failed (spec.md §4.G: "fails iff any sink
// fails"). EventStream.Publish itself never errors, but a future
// external-sink implementation backing one leg of the fanout might.
func (m *MultiEventStream) Publish(ctx context.Context, event Event) error {
	m.mu.RLock()
	streams := make([]*EventStream, len(m.streams))
	copy(streams, m.streams)
	m.mu.RUnlock()

	if len(streams) == 0 {
		return nil
	}

	errs := make([]error, len(streams))
	var wg sync.WaitGroup
	wg.Add(len(streams))
	for i, s := range streams {
		go func(i int, s *EventStream) {
			defer wg.Done()
			errs[i] = s.Publish(ctx, event)
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("eventbus: multi-stream publish: %w", err)
		}
	}
	return nil
}

// PublishBatch publishes each event via Publish, in order.
func (m *MultiEventStream) PublishBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		if err := m.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe returns the first composed stream's subscription, by
// convention (spec.md §4.G). Panics if no stream has been added yet, since
// there is no sensible subscription to hand back.
func (m *MultiEventStream) Subscribe() (<-chan Event, func()) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.streams) == 0 {
		panic("eventbus: MultiEventStream.Subscribe called with no streams added")
	}
	return m.streams[0].Subscribe()
}

// Streams returns a snapshot copy of the composed streams, for tests and
// introspection.
func (m *MultiEventStream) Streams() []*EventStream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*EventStream, len(m.streams))
	copy(out, m.streams)
	return out
}

var _ Publisher = (*MultiEventStream)(nil)
