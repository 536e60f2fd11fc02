// Package transport replicates a document between processes over websocket
// sync sessions. Each connection carries automerge sync messages in both
// directions; the store merges whatever arrives and announces the resulting
// changes to its subscribers, so the engine above never sees the transport.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyluth/mural/internal/document"
)

// syncPollInterval is how often the write side checks for new local changes
// to offer the peer once the initial exchange has drained.
const syncPollInterval = 250 * time.Millisecond

// syncConn runs one bidirectional sync session over an established websocket
// connection until the context ends or the connection drops. Both sides of a
// connection run the same loop.
func syncConn(ctx context.Context, conn *websocket.Conn, store *document.AutomergeStore, log *slog.Logger) error {
	state := store.NewSyncState()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// unblock the read pump when the context ends
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	var readErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					readErr = fmt.Errorf("failed to read sync message: %w", err)
				}
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			if err := store.ReceiveSyncMessage(state, payload); err != nil {
				readErr = err
				return
			}
		}
	}()

	writeErr := writePump(ctx, conn, store, state)
	cancel()
	wg.Wait()

	if writeErr != nil {
		return writeErr
	}
	if readErr != nil {
		log.Debug("sync read side ended", "err", readErr)
		return readErr
	}
	return nil
}

// writePump drains the initial backlog of sync messages, then keeps offering
// new local changes on a short poll. Automerge's sync protocol is
// idempotent, so polling with nothing to say generates no message.
func writePump(ctx context.Context, conn *websocket.Conn, store *document.AutomergeStore, state *document.SyncState) error {
	if err := drainPending(conn, store, state); err != nil {
		return err
	}

	t := time.NewTicker(syncPollInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := drainPending(conn, store, state); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func drainPending(conn *websocket.Conn, store *document.AutomergeStore, state *document.SyncState) error {
	for {
		msg, more := store.GenerateSyncMessage(state)
		if msg == nil {
			return nil
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return fmt.Errorf("failed to write sync message: %w", err)
		}
		if !more {
			return nil
		}
	}
}
