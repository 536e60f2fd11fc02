package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyluth/mural/internal/document"
)

// reconnectInterval is how long a peer waits before redialling a dropped
// sync connection.
const reconnectInterval = time.Second

// FetchSnapshot bootstraps a local store from a server's current document
// snapshot.
func FetchSnapshot(ctx context.Context, serverURL, name string) (*document.AutomergeStore, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.JoinPath("documents", name, "snapshot").String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected snapshot status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return document.LoadAutomergeStore(raw)
}

// Peer keeps a local store synchronized with a server.
type Peer struct {
	serverURL string
	name      string
	store     *document.AutomergeStore
	log       *slog.Logger
}

// NewPeer wires a local store to a server's sync endpoint for one document.
func NewPeer(serverURL, name string, store *document.AutomergeStore, log *slog.Logger) *Peer {
	return &Peer{serverURL: serverURL, name: name, store: store, log: log}
}

// Run dials the server and syncs until the context ends, redialling after
// connection drops. Local edits keep working while disconnected; the next
// successful session converges both sides.
func (p *Peer) Run(ctx context.Context) error {
	for {
		if err := p.syncOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("sync connection lost, will redial", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectInterval):
		}
	}
}

func (p *Peer) syncOnce(ctx context.Context) error {
	base, err := url.Parse(p.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	wsURL := base.JoinPath("documents", p.name, "sync")
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial sync endpoint: %w", err)
	}
	defer conn.Close()

	p.log.Info("sync session established", "document", p.name, "server", p.serverURL)
	return syncConn(ctx, conn, p.store, p.log)
}
