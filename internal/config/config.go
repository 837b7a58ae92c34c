// Package config loads or synthesizes a node's identity (spec §6's process
// lifecycle: "load local config, or synthesize one from a port argument").
package config

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/printforge/internal/storage"
)

// NodeConfig is the persisted shape of config/<node_id>.json.
type NodeConfig struct {
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// Paths collects the file layout for a running node, derived from a single
// base directory (spec §6's persisted-state layout).
type Paths struct {
	BaseDir      string
	SnapshotPath string
	LogPath      string
	RegistryPath string
	ConfigPath   string
}

// NewPaths lays out the per-node and shared files under baseDir:
// state_<node_id>.json, logs/log_<port>.json, config/peers.json,
// config/<node_id>.json.
func NewPaths(baseDir, nodeID string, port int) Paths {
	return Paths{
		BaseDir:      baseDir,
		SnapshotPath: filepath.Join(baseDir, fmt.Sprintf("state_%s.json", nodeID)),
		LogPath:      filepath.Join(baseDir, "logs", fmt.Sprintf("log_%d.json", port)),
		RegistryPath: filepath.Join(baseDir, "config", "peers.json"),
		ConfigPath:   filepath.Join(baseDir, "config", fmt.Sprintf("%s.json", nodeID)),
	}
}

// Load reads the node config at paths.ConfigPath. If it does not exist, it
// synthesizes one from port (node_id := "node_<port>", host 127.0.0.1) and
// persists it, matching spec §6's startup contract.
func Load(paths Paths, port int) (NodeConfig, error) {
	var cfg NodeConfig
	existed, err := storage.ReadFileJSON(paths.ConfigPath, &cfg)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("reading node config: %w", err)
	}
	if existed {
		return cfg, nil
	}

	cfg = NodeConfig{
		NodeID: fmt.Sprintf("node_%d", port),
		Host:   "127.0.0.1",
		Port:   port,
	}
	if err := storage.WriteFileAtomic(paths.ConfigPath, cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("persisting synthesized node config: %w", err)
	}
	return cfg, nil
}
