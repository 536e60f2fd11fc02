package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/mural/internal/config"
	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/transport"
)

func logger() *slog.Logger {
	return slog.Default()
}

// loadConfig reads the config file named by the global --config flag.
func loadConfig() (*config.MuralConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{
				fmt.Sprintf("Check that %s exists and is valid", configPath),
				"Pass an explicit path with --config",
			},
		)
	}
	return cfg, nil
}

// openStore connects the configured store backend. For the automerge backend
// it either loads the local snapshot, bootstraps from a configured sync
// server, or starts empty; when a sync server is configured a background
// peer keeps the store converging until ctx ends.
func openStore(ctx context.Context, cfg *config.MuralConfig) (document.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		store, err := document.NewRedisStore(&redis.Options{Addr: cfg.Store.RedisAddr}, cfg.Document.Name)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, printer.Error(
				"cannot reach redis",
				fmt.Sprintf("Ping to %s failed: %v", cfg.Store.RedisAddr, err),
				[]string{"Check that redis is running and store.redis_addr is correct"},
			)
		}
		return store, nil

	default:
		store, err := openAutomergeStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Sync != nil && cfg.Sync.ServerURL != "" {
			peer := transport.NewPeer(cfg.Sync.ServerURL, cfg.Document.Name, store, logger())
			go peer.Run(ctx)
		}
		return store, nil
	}
}

func openAutomergeStore(ctx context.Context, cfg *config.MuralConfig) (*document.AutomergeStore, error) {
	// a configured sync server is the freshest starting point
	if cfg.Sync != nil && cfg.Sync.ServerURL != "" {
		store, err := transport.FetchSnapshot(ctx, cfg.Sync.ServerURL, cfg.Document.Name)
		if err != nil {
			return nil, printer.Error(
				"cannot reach sync server",
				fmt.Sprintf("Snapshot fetch from %s failed: %v", cfg.Sync.ServerURL, err),
				[]string{"Check that `mural serve` is running at sync.server_url"},
			)
		}
		return store, nil
	}

	if cfg.Document.SnapshotPath != "" {
		raw, err := os.ReadFile(cfg.Document.SnapshotPath)
		switch {
		case err == nil:
			return document.LoadAutomergeStore(raw)
		case os.IsNotExist(err):
			// first run: start empty, the snapshot appears on save
		default:
			return nil, fmt.Errorf("failed to read snapshot %s: %w", cfg.Document.SnapshotPath, err)
		}
	}

	return document.NewAutomergeStore(), nil
}
