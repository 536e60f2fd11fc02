package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/transport"
)

// snapshotInterval is how often the running server persists the document.
const snapshotInterval = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document sync server",
	Long: `Run the replication server for one document.

Peers bootstrap from the snapshot endpoint and then hold a websocket
sync session open; the server merges every participant's changes and
pushes them back out. With document.snapshot_path configured the
document is persisted periodically and on shutdown.

Examples:
  # Serve the configured document
  mural serve

  # Serve with an explicit config
  mural serve --config team-board.yml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != "automerge" {
		return printer.Error(
			"serve requires the automerge backend",
			fmt.Sprintf("store.backend is %q; the sync server replicates an automerge document", cfg.Store.Backend),
			[]string{"Remove the store section, or set store.backend: automerge"},
		)
	}
	if cfg.Sync != nil && cfg.Sync.ServerURL != "" {
		return printer.Error(
			"serve cannot also be a sync client",
			"This config points at another sync server via sync.server_url",
			[]string{"Remove the sync section from the server's config"},
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openAutomergeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	server := transport.NewServer(cfg.Document.Name, store, logger())
	httpServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: server.Handler()}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Document.SnapshotPath != "" {
		go persistPeriodically(ctx, store, cfg.Document.SnapshotPath)
	}

	printer.Success("serving document %q on %s\n", cfg.Document.Name, cfg.Server.ListenAddr)

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-exit:
		printer.Info("caught %v, shutting down\n", sig)
	case err := <-errCh:
		return printer.Error(
			"server failed",
			err.Error(),
			[]string{fmt.Sprintf("Check that %s is free to listen on", cfg.Server.ListenAddr)},
		)
	}

	cancel()
	_ = httpServer.Close()

	if cfg.Document.SnapshotPath != "" {
		if err := saveSnapshot(store, cfg.Document.SnapshotPath); err != nil {
			return err
		}
		printer.Success("document saved to %s\n", cfg.Document.SnapshotPath)
	}
	return nil
}

func persistPeriodically(ctx context.Context, store *document.AutomergeStore, path string) {
	t := time.NewTicker(snapshotInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := saveSnapshot(store, path); err != nil {
				logger().Error("periodic snapshot failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func saveSnapshot(store *document.AutomergeStore, path string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, store.Save(), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
