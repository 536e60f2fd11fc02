package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/pkg/board"
)

func rawNote(t *testing.T, id string, x float64) json.RawMessage {
	t.Helper()
	o := board.NewStickyNote(x, 0, "note "+id, "yellow")
	o.ID = id
	o.LastModifiedBy = "test"
	o.LastModifiedAt = time.Now().UnixMilli()
	raw, err := board.Marshal(o)
	require.NoError(t, err)
	return raw
}

func applyNote(t *testing.T, store *document.AutomergeStore, id string, x float64) {
	t.Helper()
	err := store.Apply(context.Background(), document.Tx{
		Origin: "test",
		Puts:   map[string]json.RawMessage{id: rawNote(t, id, x)},
	})
	require.NoError(t, err)
}

func hasEntry(store *document.AutomergeStore, id string) func() bool {
	return func() bool {
		_, err := store.Get(context.Background(), id)
		return err == nil
	}
}

func TestFetchSnapshot_BootstrapsPeerStore(t *testing.T) {
	serverStore := document.NewAutomergeStore()
	t.Cleanup(func() { serverStore.Close() })
	applyNote(t, serverStore, "seed", 1)

	srv := httptest.NewServer(NewServer("board", serverStore, slog.Default()).Handler())
	t.Cleanup(srv.Close)

	peerStore, err := FetchSnapshot(context.Background(), srv.URL, "board")
	require.NoError(t, err)
	t.Cleanup(func() { peerStore.Close() })

	raw, err := peerStore.Get(context.Background(), "seed")
	require.NoError(t, err)
	obj, err := board.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "note seed", obj.Text)
}

func TestFetchSnapshot_UnknownDocument(t *testing.T) {
	serverStore := document.NewAutomergeStore()
	t.Cleanup(func() { serverStore.Close() })

	srv := httptest.NewServer(NewServer("board", serverStore, slog.Default()).Handler())
	t.Cleanup(srv.Close)

	_, err := FetchSnapshot(context.Background(), srv.URL, "other")
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprint(http.StatusNotFound))
}

func TestPeer_ConvergesBothDirections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverStore := document.NewAutomergeStore()
	t.Cleanup(func() { serverStore.Close() })
	applyNote(t, serverStore, "seed", 1)

	srv := httptest.NewServer(NewServer("board", serverStore, slog.Default()).Handler())
	t.Cleanup(srv.Close)

	peerStore, err := FetchSnapshot(ctx, srv.URL, "board")
	require.NoError(t, err)
	t.Cleanup(func() { peerStore.Close() })

	peer := NewPeer(srv.URL, "board", peerStore, slog.Default())
	go peer.Run(ctx)

	// peer -> server
	applyNote(t, peerStore, "from-peer", 2)
	require.Eventually(t, hasEntry(serverStore, "from-peer"), 5*time.Second, 25*time.Millisecond,
		"peer write reaches the server")

	// server -> peer
	applyNote(t, serverStore, "from-server", 3)
	require.Eventually(t, hasEntry(peerStore, "from-server"), 5*time.Second, 25*time.Millisecond,
		"server write reaches the peer")
}

func TestPeer_RemoteChangesAnnouncedAsRemoteOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverStore := document.NewAutomergeStore()
	t.Cleanup(func() { serverStore.Close() })

	srv := httptest.NewServer(NewServer("board", serverStore, slog.Default()).Handler())
	t.Cleanup(srv.Close)

	peerStore, err := FetchSnapshot(ctx, srv.URL, "board")
	require.NoError(t, err)
	t.Cleanup(func() { peerStore.Close() })

	sub, err := peerStore.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	peer := NewPeer(srv.URL, "board", peerStore, slog.Default())
	go peer.Run(ctx)

	applyNote(t, serverStore, "pushed", 4)

	select {
	case cs := <-sub.Events():
		require.Equal(t, document.RemoteOrigin, cs.Origin)
		require.Contains(t, cs.Puts, "pushed")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the replicated change set")
	}
}
