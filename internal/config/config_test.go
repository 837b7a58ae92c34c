package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSynthesizesConfigWhenMissing(t *testing.T) {
	dir := t.TempDir()
	paths := NewPaths(dir, "node_5001", 5001)

	cfg, err := Load(paths, 5001)
	require.NoError(t, err)
	assert.Equal(t, "node_5001", cfg.NodeID)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 5001, cfg.Port)

	// a second load reads the now-persisted file back unchanged.
	cfg2, err := Load(paths, 5001)
	require.NoError(t, err)
	assert.Equal(t, cfg, cfg2)
}

func TestNewPathsLayout(t *testing.T) {
	paths := NewPaths("/data", "node_5002", 5002)
	assert.Equal(t, "/data/state_node_5002.json", paths.SnapshotPath)
	assert.Equal(t, "/data/logs/log_5002.json", paths.LogPath)
	assert.Equal(t, "/data/config/peers.json", paths.RegistryPath)
	assert.Equal(t, "/data/config/node_5002.json", paths.ConfigPath)
}
