package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/printforge/internal/domain"
	"github.com/cuemby/printforge/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state_node1.json")
	store := NewSnapshotStore(path)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Term)
	assert.Empty(t, snap.Printers)

	snap.Term = 3
	snap.VotedFor = "node2"
	snap.Printers["p1"] = domain.Printer{ID: "p1", Company: "Prusa", Model: "MK3"}
	require.NoError(t, store.Save(snap))

	reloaded, err := NewSnapshotStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reloaded.Term)
	assert.Equal(t, "node2", reloaded.VotedFor)
	assert.Equal(t, "Prusa", reloaded.Printers["p1"].Company)
}

func TestSnapshotStoreCorruptFileResetsToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state_node1.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	snap, err := NewSnapshotStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Term)
	assert.NotNil(t, snap.Printers)
}

func TestLogStoreAppendAndDensity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "log_5001.json")
	ls, err := NewLogStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, ls.Len())

	cmd := statemachine.Command{Kind: statemachine.AddPrinter, PrinterID: "p1", Company: "Prusa", Model: "MK3"}
	require.NoError(t, ls.Append(LogEntry{Index: 0, Term: 1, Command: cmd, Timestamp: time.Unix(0, 0)}))
	require.NoError(t, ls.Append(LogEntry{Index: 1, Term: 1, Command: cmd, Timestamp: time.Unix(0, 0)}))

	err = ls.Append(LogEntry{Index: 5, Term: 1, Command: cmd})
	assert.Error(t, err, "non-dense index must be rejected")

	assert.Equal(t, int64(1), ls.LastIndex())
	assert.Len(t, ls.From(1), 1)

	reloaded, err := NewLogStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}
