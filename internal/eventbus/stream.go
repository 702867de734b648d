package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// subscriber is one EventStream.Subscribe() call's delivery channel,
// matching the teacher's sseSubscriber (internal/rpc/server_core.go): a
// buffered channel plus an id used only for unsubscribe bookkeeping.
type subscriber struct {
	id uint64
	ch chan Event
}

// EventStream is the pub/sub half of spec.md §4.G's Event Bus: a bounded
// broadcast channel plus an in-memory ring buffer holding the last N
// events for subscriber warm-up. It owns no process-wide state — each
// EventStream is created and held by exactly one engine handle (spec.md
// §9, "no process-wide singleton").
type EventStream struct {
	mu        sync.RWMutex
	replay    []Event
	replayCap int
	subs      []*subscriber
	nextSubID uint64

	subscriberBuffer int
	dropped          atomic.Int64
}

// NewEventStream constructs an EventStream with the given replay-buffer
// capacity and per-subscriber channel buffer size.
func NewEventStream(replayCapacity, subscriberBuffer int) *EventStream {
	if replayCapacity <= 0 {
		replayCapacity = 1000
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = 64
	}
	return &EventStream{
		replay:           make([]Event, 0, replayCapacity),
		replayCap:        replayCapacity,
		subscriberBuffer: subscriberBuffer,
	}
}

// Publish appends event to the ring buffer (evicting the oldest entry once
// full) and then best-effort broadcasts to every live subscriber. A
// subscriber whose channel is full lags and drops the event rather than
// blocking the publisher, per spec.md §4.G. Publish never itself returns
// an error — it satisfies Publisher by always succeeding, since the only
// way delivery can fail here is a slow subscriber, which is documented as
// acceptable.
func (s *EventStream) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	s.replay = append(s.replay, event)
	if len(s.replay) > s.replayCap {
		s.replay = s.replay[1:]
	}
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// PublishBatch publishes each event in order.
func (s *EventStream) PublishBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		if err := s.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe returns a lazy sequence of events observed from this moment
// forward (spec.md §4.G: "subscribe() returns a lazy sequence of events
// from the moment of subscription") plus an unsubscribe function that must
// be called to release the subscriber's channel.
func (s *EventStream) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	sub := &subscriber{id: s.nextSubID, ch: make(chan Event, s.subscriberBuffer)}
	s.subs = append(s.subs, sub)

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing.id == sub.id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
	}
	return sub.ch, unsubscribe
}

// Replay returns a copy of the ring buffer's current contents, oldest
// first, for a subscriber warming up after the fact.
func (s *EventStream) Replay() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.replay))
	copy(out, s.replay)
	return out
}

// DroppedCount returns the number of events dropped due to slow
// subscribers since the stream was created (or since the last reset).
func (s *EventStream) DroppedCount() int64 { return s.dropped.Load() }

// ResetDroppedCount zeroes and returns the prior dropped-event count.
func (s *EventStream) ResetDroppedCount() int64 { return s.dropped.Swap(0) }

// SubscriberCount reports the number of currently live subscribers.
func (s *EventStream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

var _ Publisher = (*EventStream)(nil)
