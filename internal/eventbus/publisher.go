package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Publisher is the push-only half of the event bus (spec.md §4.G): async
// publish of one event or a batch. In-memory, no-op, and external
// (message-broker) sinks all share this one interface.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

// NoopPublisher discards every event. Used when no sink is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error          { return nil }
func (NoopPublisher) PublishBatch(context.Context, []Event) error { return nil }

// InMemoryPublisher records every published event in order, for tests and
// the demo CLI. Safe for concurrent use.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemoryPublisher returns an empty InMemoryPublisher.
func NewInMemoryPublisher() *InMemoryPublisher { return &InMemoryPublisher{} }

func (p *InMemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryPublisher) PublishBatch(_ context.Context, events []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// Events returns a snapshot copy of every event recorded so far.
func (p *InMemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// RetryingPublisher wraps an external sink Publisher with exponential
// backoff, matching the teacher's newEmbeddedOpenBackoff pattern
// (internal/storage/dolt/store_embedded.go) applied here to a flaky
// external sink instead of a flaky store-open. A fresh backoff.BackOff is
// requested per call since BackOff implementations are stateful.
type RetryingPublisher struct {
	next       Publisher
	maxElapsed time.Duration
	log        *zap.Logger
}

// NewRetryingPublisher wraps next with exponential-backoff retry.
func NewRetryingPublisher(next Publisher, maxElapsed time.Duration, log *zap.Logger) *RetryingPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	return &RetryingPublisher{next: next, maxElapsed: maxElapsed, log: log}
}

func (p *RetryingPublisher) newBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.maxElapsed
	return bo
}

func (p *RetryingPublisher) Publish(ctx context.Context, event Event) error {
	return backoff.Retry(func() error {
		return p.next.Publish(ctx, event)
	}, backoff.WithContext(p.newBackoff(), ctx))
}

func (p *RetryingPublisher) PublishBatch(ctx context.Context, events []Event) error {
	return backoff.Retry(func() error {
		return p.next.PublishBatch(ctx, events)
	}, backoff.WithContext(p.newBackoff(), ctx))
}

// LoggingPublisher wraps next and logs publish failures via zap, matching
// the "publisher errors are logged via metrics but do not fail the
// operation" posture from spec.md §7. It still propagates the error so a
// caller that does want to observe failures (e.g. MultiEventStream) can.
type LoggingPublisher struct {
	next Publisher
	log  *zap.Logger
}

// NewLoggingPublisher wraps next, logging any publish error through log.
func NewLoggingPublisher(next Publisher, log *zap.Logger) *LoggingPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingPublisher{next: next, log: log}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event Event) error {
	err := p.next.Publish(ctx, event)
	if err != nil {
		p.log.Warn("publisher failed", zap.String("event_type", string(event.Type())), zap.Error(err))
	}
	return err
}

func (p *LoggingPublisher) PublishBatch(ctx context.Context, events []Event) error {
	err := p.next.PublishBatch(ctx, events)
	if err != nil {
		p.log.Warn("publisher batch failed", zap.Int("count", len(events)), zap.Error(err))
	}
	return err
}
