package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/pkg/board"
)

func marshalNote(t *testing.T, id, text, author string) json.RawMessage {
	t.Helper()
	o := board.NewStickyNote(0, 0, text, "yellow")
	o.ID = id
	o.LastModifiedBy = author
	o.LastModifiedAt = time.Now().UnixMilli()
	raw, err := board.Marshal(o)
	require.NoError(t, err)
	return raw
}

func runWatcher(t *testing.T, format Format, apply func(store *document.AutomergeStore)) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := document.NewAutomergeStore()
	t.Cleanup(func() { store.Close() })

	var buf bytes.Buffer
	w := New(store, &buf, format)
	w.now = func() time.Time { return time.Date(2026, 8, 30, 12, 30, 45, 0, time.UTC) }

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// let the watcher subscribe before writing
	time.Sleep(50 * time.Millisecond)
	apply(store)
	time.Sleep(100 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	return buf.String()
}

func TestWatcher_TextOutput(t *testing.T) {
	out := runWatcher(t, FormatText, func(store *document.AutomergeStore) {
		err := store.Apply(context.Background(), document.Tx{
			Origin: "session-1",
			Puts:   map[string]json.RawMessage{"n1": marshalNote(t, "n1", "ship it", "cam")},
		})
		require.NoError(t, err)
		err = store.Apply(context.Background(), document.Tx{
			Origin:  "session-1",
			Deletes: []string{"n1"},
		})
		require.NoError(t, err)
	})

	require.Contains(t, out, "12:30:45")
	require.Contains(t, out, "put")
	require.Contains(t, out, "sticky-note")
	require.Contains(t, out, `"ship it" by cam`)
	require.Contains(t, out, "delete  n1")
}

func TestWatcher_JSONOutput(t *testing.T) {
	out := runWatcher(t, FormatJSON, func(store *document.AutomergeStore) {
		err := store.Apply(context.Background(), document.Tx{
			Origin: "session-1",
			Puts:   map[string]json.RawMessage{"n1": marshalNote(t, "n1", "hello", "cam")},
		})
		require.NoError(t, err)
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	require.Equal(t, "put", ev.Action)
	require.Equal(t, "n1", ev.ID)
	require.Equal(t, "session-1", ev.Origin)
	require.Equal(t, board.TypeStickyNote, ev.Type)
	require.Equal(t, "hello", ev.Label)
	require.Equal(t, "cam", ev.By)
}

func TestWatcher_BatchLinesAreDeterministic(t *testing.T) {
	out := runWatcher(t, FormatText, func(store *document.AutomergeStore) {
		err := store.Apply(context.Background(), document.Tx{
			Origin: "session-1",
			Puts: map[string]json.RawMessage{
				"b": marshalNote(t, "b", "second", "cam"),
				"a": marshalNote(t, "a", "first", "cam"),
				"c": marshalNote(t, "c", "third", "cam"),
			},
		})
		require.NoError(t, err)
	})

	aIdx := strings.Index(out, `"first"`)
	bIdx := strings.Index(out, `"second"`)
	cIdx := strings.Index(out, `"third"`)
	require.True(t, aIdx >= 0 && aIdx < bIdx && bIdx < cIdx, "puts print in ID order:\n%s", out)
}

func TestWatcher_MalformedEntryDoesNotAbort(t *testing.T) {
	out := runWatcher(t, FormatText, func(store *document.AutomergeStore) {
		err := store.Apply(context.Background(), document.Tx{
			Origin: "session-1",
			Puts: map[string]json.RawMessage{
				"bad":  json.RawMessage(`{"id":"bad","type":"hologram"}`),
				"good": marshalNote(t, "good", "fine", "cam"),
			},
		})
		require.NoError(t, err)
	})

	require.Contains(t, out, "<malformed:")
	require.Contains(t, out, `"fine" by cam`)
}
