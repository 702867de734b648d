// Package kvstore implements the sorted embedded key-value backend
// described in spec.md §4.A/§4.D on top of go.etcd.io/bbolt, a pure-Go
// B+tree-backed file store. This is the Go analog of original_source's
// sled-backed Storage (storage/mod.rs): sled and bbolt both expose a
// single sorted keyspace with prefix-ordered iteration, which is exactly
// the property the secondary-index key layout in spec.md §4.D depends on.
package kvstore

import (
	"context"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

// rootBucket is the single bucket all keys live under. A flat keyspace with
// structured key prefixes (n/, e/, sn/, ...) mirrors sled's single keyspace
// more closely than splitting into per-prefix bbolt buckets would.
var rootBucket = []byte("kv")

// Store is a durable, sorted key-value backend. A Store is safe for
// concurrent use; bbolt serializes writers internally and allows unlimited
// concurrent readers.
type Store struct {
	db   *bbolt.DB
	path string
	log  *zap.Logger

	flushInterval time.Duration
	stopFlush     chan struct{}
	flushWG       sync.WaitGroup

	closeOnce sync.Once
}

// Options configures Open.
type Options struct {
	// FlushIntervalMS controls how often buffered writes are fsynced when
	// NoSync is enabled. Zero disables the background flusher and every
	// write is synced immediately (bbolt's default durability policy).
	FlushIntervalMS int
	// NoSync defers fsync to the background flusher for write throughput,
	// at the cost of losing up to FlushIntervalMS of writes on a crash.
	NoSync bool
	Logger *zap.Logger
}

// Open opens or creates a store at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Storage, "kvstore.Open", "open bbolt database", err)
	}
	db.NoSync = opts.NoSync

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.Storage, "kvstore.Open", "create root bucket", err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{
		db:            db,
		path:          path,
		log:           log,
		flushInterval: time.Duration(opts.FlushIntervalMS) * time.Millisecond,
		stopFlush:     make(chan struct{}),
	}

	if opts.NoSync && s.flushInterval > 0 {
		s.flushWG.Add(1)
		go s.runFlushLoop()
	}

	return s, nil
}

func (s *Store) runFlushLoop() {
	defer s.flushWG.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.log.Warn("periodic flush failed", zap.Error(err))
			}
		case <-s.stopFlush:
			return
		}
	}
}

// Close stops the background flusher (if any) and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopFlush)
		s.flushWG.Wait()
		err = s.db.Close()
	})
	return err
}

// Put writes key/value atomically.
func (s *Store) Put(_ context.Context, key, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
	if err != nil {
		return xerrors.Wrap(xerrors.Storage, "kvstore.Put", "write key", err)
	}
	return nil
}

// Get reads the value for key. It returns xerrors.NotFound if absent.
func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v == nil {
			return xerrors.ErrNotFound
		}
		value = append([]byte(nil), v...) // bbolt's slice is only valid within the tx
		return nil
	})
	if err != nil {
		if err == xerrors.ErrNotFound {
			return nil, xerrors.New(xerrors.NotFound, "kvstore.Get", "key not found")
		}
		return nil, xerrors.Wrap(xerrors.Storage, "kvstore.Get", "read key", err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key)
	})
	if err != nil {
		return xerrors.Wrap(xerrors.Storage, "kvstore.Delete", "delete key", err)
	}
	return nil
}

// Entry is one key/value pair returned by ScanPrefix.
type Entry struct {
	Key   []byte
	Value []byte
}

// ScanPrefix returns every entry whose key starts with prefix, in key
// order, matching bbolt's cursor-based prefix iteration (the same
// lexicographic property the original sled backend's scan_prefix gives).
func (s *Store) ScanPrefix(_ context.Context, prefix []byte) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			entries = append(entries, Entry{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.Storage, "kvstore.ScanPrefix", "scan prefix", err)
	}
	return entries, nil
}

// ScanPrefixFunc walks every entry whose key starts with prefix, in key
// order, stopping early if fn returns false. Used by streaming query
// execution to avoid materializing the full result set.
func (s *Store) ScanPrefixFunc(_ context.Context, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			cont, err := fn(k, v)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.Storage, "kvstore.ScanPrefixFunc", "scan prefix", err)
	}
	return nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Flush fsyncs the database file, which persists any writes buffered under
// NoSync. It always calls Sync; when NoSync is disabled every write is
// already durable and the extra fsync has nothing left to persist.
func (s *Store) Flush() error {
	if err := s.db.Sync(); err != nil {
		return xerrors.Wrap(xerrors.Storage, "kvstore.Flush", "fsync database", err)
	}
	return nil
}

// SizeBytes reports the on-disk size of the store file.
func (s *Store) SizeBytes() (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.Storage, "kvstore.SizeBytes", "stat database file", err)
	}
	return fi.Size(), nil
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }
