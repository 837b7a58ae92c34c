package storage

import (
	"github.com/cuemby/printforge/internal/domain"
	"github.com/cuemby/printforge/internal/log"
)

// Snapshot is the full persisted state of a node: consensus variables plus
// the domain state (spec §4.2).
type Snapshot struct {
	Term      uint64                     `json:"term"`
	VotedFor  string                     `json:"voted_for"`
	Printers  map[string]domain.Printer  `json:"printers"`
	Filaments map[string]domain.Filament `json:"filaments"`
	Jobs      map[string]domain.Job      `json:"jobs"`

	// AppliedIndex is the index of the last log entry reflected in the
	// domain state above, or -1 if none. It lets a restarting node detect
	// that the log holds entries beyond what the snapshot reflects and
	// replay only the tail (spec §4.2).
	AppliedIndex int64 `json:"applied_index"`
}

// SnapshotStore owns the node's state_<node_id>.json file.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore returns a store backed by the file at path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Load reads the snapshot file. A missing file is not an error: it returns
// a zero-value Snapshot, matching a brand new node's initial state (term 0,
// no vote, empty domain state).
//
// A snapshot that exists but fails to parse is treated as CorruptSnapshot
// (spec §7): it is logged and the zero-value Snapshot is returned so the
// node can still start, rather than failing to boot.
func (s *SnapshotStore) Load() (Snapshot, error) {
	snap := Snapshot{
		Printers:     make(map[string]domain.Printer),
		Filaments:    make(map[string]domain.Filament),
		Jobs:         make(map[string]domain.Job),
		AppliedIndex: -1,
	}
	existed, err := ReadFileJSON(s.path, &snap)
	if err != nil {
		log.WithComponent("storage").Warn().Err(err).Str("path", s.path).
			Msg("corrupt snapshot, resetting to empty")
		return Snapshot{
			Printers:     make(map[string]domain.Printer),
			Filaments:    make(map[string]domain.Filament),
			Jobs:         make(map[string]domain.Job),
			AppliedIndex: -1,
		}, nil
	}
	if !existed {
		return snap, nil
	}
	if snap.Printers == nil {
		snap.Printers = make(map[string]domain.Printer)
	}
	if snap.Filaments == nil {
		snap.Filaments = make(map[string]domain.Filament)
	}
	if snap.Jobs == nil {
		snap.Jobs = make(map[string]domain.Job)
	}
	return snap, nil
}

// Save persists snap atomically. Called after every accepted state-machine
// step and after every persistent consensus change (spec §4.2).
func (s *SnapshotStore) Save(snap Snapshot) error {
	return WriteFileAtomic(s.path, snap)
}
