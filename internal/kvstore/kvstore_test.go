package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lineagegraph/internal/xerrors"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	require.NoError(t, s.Put(ctx, []byte("n/1"), []byte("hello")))
	got, err := s.Get(ctx, []byte("n/1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	_, err := s.Get(ctx, []byte("missing"))
	require.Error(t, err)
	assert.True(t, xerrors.OfKind(err, xerrors.NotFound))
}

func TestDeleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	require.NoError(t, s.Put(ctx, []byte("n/1"), []byte("v")))
	require.NoError(t, s.Delete(ctx, []byte("n/1")))

	_, err := s.Get(ctx, []byte("n/1"))
	assert.True(t, xerrors.OfKind(err, xerrors.NotFound))
}

func TestDeleteMissingKeyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})
	assert.NoError(t, s.Delete(ctx, []byte("never-existed")))
}

func TestScanPrefixReturnsOnlyMatchingKeysInOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	require.NoError(t, s.Put(ctx, []byte("sn/a/1"), []byte("1")))
	require.NoError(t, s.Put(ctx, []byte("sn/a/2"), []byte("2")))
	require.NoError(t, s.Put(ctx, []byte("sn/b/1"), []byte("3")))
	require.NoError(t, s.Put(ctx, []byte("n/x"), []byte("4")))

	entries, err := s.ScanPrefix(ctx, []byte("sn/a/"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("sn/a/1"), entries[0].Key)
	assert.Equal(t, []byte("sn/a/2"), entries[1].Key)
}

func TestScanPrefixFuncStopsEarly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	for _, k := range []string{"p/1", "p/2", "p/3"} {
		require.NoError(t, s.Put(ctx, []byte(k), []byte("v")))
	}

	var seen []string
	err := s.ScanPrefixFunc(ctx, []byte("p/"), func(key, _ []byte) (bool, error) {
		seen = append(seen, string(key))
		return len(seen) < 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p/1", "p/2"}, seen)
}

func TestFlushAndSizeBytes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))
	require.NoError(t, s.Flush())

	size, err := s.SizeBytes()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}

func TestBackgroundFlushLoopRunsWhenNoSyncEnabled(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{NoSync: true, FlushIntervalMS: 20})

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v")))
	time.Sleep(60 * time.Millisecond)

	got, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestPathReturnsOpenedFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "named.db")
	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())
}
