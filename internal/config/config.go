package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DocumentConfig names the shared document and where its snapshot lives.
type DocumentConfig struct {
	Name         string `yaml:"name"`
	SnapshotPath string `yaml:"snapshot_path,omitempty"` // Optional: load/save an automerge snapshot here
}

// StoreConfig selects the replicated store backend.
type StoreConfig struct {
	Backend   string `yaml:"backend,omitempty"`    // "automerge" (default) or "redis"
	RedisAddr string `yaml:"redis_addr,omitempty"` // Required when backend is "redis"
}

// ServerConfig specifies the sync server listen address.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"` // Default: localhost:8080
}

// SyncConfig points a peer at a sync server.
type SyncConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
}

// MuralConfig represents the top-level mural.yml configuration
type MuralConfig struct {
	Version  string         `yaml:"version"`
	Author   string         `yaml:"author"` // Required: name stamped into lastModifiedBy
	Document DocumentConfig `yaml:"document"`
	Store    *StoreConfig   `yaml:"store,omitempty"`
	Server   *ServerConfig  `yaml:"server,omitempty"`
	Sync     *SyncConfig    `yaml:"sync,omitempty"`
}

// Validate performs strict validation on the configuration and fills in
// defaults for optional sections.
func (c *MuralConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Author == "" {
		return fmt.Errorf("author is required")
	}

	if c.Document.Name == "" {
		return fmt.Errorf("document.name is required")
	}

	// Apply default store config if missing
	if c.Store == nil {
		c.Store = &StoreConfig{Backend: "automerge"}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "automerge"
	}
	switch c.Store.Backend {
	case "automerge":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required when store.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid store.backend: %s (must be 'automerge' or 'redis')", c.Store.Backend)
	}

	// Snapshots are an automerge feature; a redis deployment persists in redis
	if c.Store.Backend == "redis" && c.Document.SnapshotPath != "" {
		return fmt.Errorf("document.snapshot_path is only valid with the automerge backend")
	}

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "localhost:8080"
	}

	return nil
}

// Load reads and validates mural.yml from the specified path
func Load(path string) (*MuralConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config MuralConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
