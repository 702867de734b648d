package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/lineagegraph/internal/cache"
	"github.com/steveyegge/lineagegraph/internal/config"
	"github.com/steveyegge/lineagegraph/internal/eventbus"
	"github.com/steveyegge/lineagegraph/internal/ids"
	"github.com/steveyegge/lineagegraph/internal/kvstore"
	"github.com/steveyegge/lineagegraph/internal/metrics"
	"github.com/steveyegge/lineagegraph/internal/serialize"
	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// Options configures Open. Publishers are plain Go values (no serializable
// config field for them, per spec.md §6), so they're supplied here rather
// than through config.Config.
type Options struct {
	Config     config.Config
	Publishers []eventbus.Publisher
	Logger     *zap.Logger
}

// Engine is the Async Graph Engine (spec.md §4.E): it orchestrates the KV
// backend, serializer, cache, and event stream behind the typed
// session/prompt/response/tool/template/agent operations. An *Engine is a
// shared-reference handle: every exported method is safe to call
// concurrently from many goroutines, and no method requires exclusive
// ownership (spec.md §5).
type Engine struct {
	store      *kvstore.Store
	serializer *serialize.Serializer
	cache      *cache.Cache
	events     *eventbus.MultiEventStream
	metrics    *metrics.Core
	log        *zap.Logger

	cfg config.Config

	// externalPublishers holds non-EventStream sinks (in-memory recorders,
	// external message brokers) that receive a best-effort fire-and-forget
	// publish alongside the internal event stream, per spec.md §7
	// ("Publishers are best-effort ... errors ... do not fail the operation").
	externalPublishers []eventbus.Publisher

	// sessionLocks serializes the read-then-write "what was the previous
	// prompt in this session" step of AddPrompt per session, since the KV
	// backend offers only single-key atomicity (spec.md §4.A) and the
	// Follows-edge chain needs a consistent predecessor across concurrent
	// writers into the same session.
	sessionLocks sync.Map // string(SessionID) -> *sync.Mutex
}

// Open opens or creates a store at cfg.Path and returns a ready Engine
// handle, per spec.md §4.E's open(config) operation. It fails with
// InvalidConfig if the store's on-disk header is incompatible with cfg
// (format mismatch on reopen, spec.md §6).
func Open(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config.Clamp()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := config.OpenOrCreateHeader(cfg.Path, cfg); err != nil {
		return nil, err
	}

	format, err := serialize.ParseFormat(cfg.SerializationFormat)
	if err != nil {
		return nil, err
	}

	storeOpts := kvstore.Options{Logger: log}
	if cfg.FlushIntervalMS > 0 {
		storeOpts.NoSync = true
		storeOpts.FlushIntervalMS = cfg.FlushIntervalMS
	}
	dataPath := cfg.Path + "/data.db"
	store, err := kvstore.Open(dataPath, storeOpts)
	if err != nil {
		return nil, err
	}

	events := eventbus.NewMultiEventStream()
	for _, p := range opts.Publishers {
		if s, ok := p.(*eventbus.EventStream); ok {
			events.AddStream(s)
		}
	}
	// Always carry an internal replay stream even if the caller supplied
	// none, so Subscribe() always has something to hand back.
	if len(events.Streams()) == 0 {
		events.AddStream(eventbus.NewEventStream(1000, 64))
	}

	e := &Engine{
		store:      store,
		serializer: serialize.New(format),
		cache: cache.New(
			cache.WithCapacity(cfg.CacheSizeMB*64),
			cache.WithTTL(time.Duration(cfg.CacheTTLSecs)*time.Second),
		),
		events:  events,
		metrics: metrics.New(),
		log:     log,
		cfg:     cfg,
	}

	// Non-stream publishers (external sinks, in-memory recorders) publish
	// alongside the internal replay stream via a best-effort fanout that
	// never blocks a write on a slow external sink.
	for _, p := range opts.Publishers {
		if _, ok := p.(*eventbus.EventStream); ok {
			continue
		}
		e.externalPublishers = append(e.externalPublishers, p)
	}

	_ = ctx // reserved: Open performs no I/O cancelable mid-call today
	return e, nil
}

func (e *Engine) emit(ctx context.Context, evt eventbus.Event) {
	if err := e.events.Publish(ctx, evt); err != nil {
		e.log.Warn("event stream publish failed", zap.Error(err))
	}
	for _, p := range e.externalPublishers {
		if err := p.Publish(ctx, evt); err != nil {
			e.log.Warn("external publisher failed", zap.String("event_type", string(evt.Type())), zap.Error(err))
		}
	}
}

// Subscribe exposes the engine's internal event stream subscription, for
// in-process subscribers that want live mutation/query events.
func (e *Engine) Subscribe() (<-chan eventbus.Event, func()) {
	return e.events.Subscribe()
}

// Flush awaits backend durability (spec.md §4.E).
func (e *Engine) Flush(context.Context) error {
	return e.store.Flush()
}

// Close releases the backend handle. Safe to call once.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Metrics returns the engine's metrics snapshot.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// sessionLock returns (creating if necessary) the mutex guarding
// ordering-sensitive writes into session.
func (e *Engine) sessionLock(session ids.SessionID) *sync.Mutex {
	actual, _ := e.sessionLocks.LoadOrStore(session.String(), &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func wrapNotFound(op, what string) error {
	return xerrors.New(xerrors.NotFound, op, what+" not found")
}
