package document

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/mural/pkg/board"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(&redis.Options{Addr: mr.Addr()}, "test-doc")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRedisStore_EmptyDocumentName(t *testing.T) {
	_, err := NewRedisStore(&redis.Options{}, "")
	require.Error(t, err)
}

func TestRedisStore_ApplyAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	err := store.Apply(ctx, Tx{
		Origin: "session-1",
		Puts:   map[string]json.RawMessage{"a": rawEntry(t, "a")},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	obj, err := board.Decode(got)
	require.NoError(t, err)
	require.Equal(t, "a", obj.ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store := newTestRedisStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.True(t, board.IsNotFound(err))
}

func TestRedisStore_List(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	require.NoError(t, store.Apply(ctx, Tx{
		Origin: "s",
		Puts: map[string]json.RawMessage{
			"a": rawEntry(t, "a"),
			"b": rawEntry(t, "b"),
		},
	}))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Contains(t, entries, "a")
	require.Contains(t, entries, "b")
}

func TestRedisStore_BatchIsOneNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newTestRedisStore(t)

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	// give the pub/sub goroutine a moment to attach
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, store.Apply(ctx, Tx{
		Origin: "session-1",
		Puts: map[string]json.RawMessage{
			"a": rawEntry(t, "a"),
			"b": rawEntry(t, "b"),
		},
		Deletes: []string{"gone"},
	}))

	cs := waitForChangeSet(t, sub)
	require.Equal(t, "session-1", cs.Origin)
	require.Len(t, cs.Puts, 2)
	require.Equal(t, []string{"gone"}, cs.Deletes)

	select {
	case extra, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected extra notification: %+v", extra)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisStore_DeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	require.NoError(t, store.Apply(ctx, Tx{
		Origin: "s",
		Puts:   map[string]json.RawMessage{"a": rawEntry(t, "a")},
	}))
	require.NoError(t, store.Apply(ctx, Tx{
		Origin:  "s",
		Deletes: []string{"a"},
	}))

	_, err := store.Get(ctx, "a")
	require.True(t, board.IsNotFound(err))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestRedisStore_KeyNamespacing(t *testing.T) {
	require.Equal(t, "mural:demo:objects", ObjectsKey("demo"))
	require.Equal(t, "mural:demo:changes", ChangesChannel("demo"))
}
