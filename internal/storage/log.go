package storage

import (
	"fmt"
	"time"

	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/statemachine"
)

// LogEntry is one committed command at a fixed log position (spec §3, §4.2).
type LogEntry struct {
	Index     uint64                `json:"index"`
	Term      uint64                `json:"term"`
	Command   statemachine.Command  `json:"command"`
	Timestamp time.Time             `json:"timestamp"`
}

// LogStore owns the node's logs/log_<port>.json file: an ordered, dense
// list of LogEntry appended on each accepted command.
type LogStore struct {
	path    string
	entries []LogEntry
}

// NewLogStore loads (or initializes) the log file at path.
func NewLogStore(path string) (*LogStore, error) {
	ls := &LogStore{path: path}
	var entries []LogEntry
	existed, err := ReadFileJSON(path, &entries)
	if err != nil {
		log.WithComponent("storage").Warn().Err(err).Str("path", path).
			Msg("corrupt log, resetting to empty")
		ls.entries = nil
		return ls, nil
	}
	if !existed {
		ls.entries = nil
		return ls, nil
	}
	ls.entries = entries
	return ls, nil
}

// Len returns the number of entries (also the next index to assign).
func (l *LogStore) Len() int {
	return len(l.entries)
}

// LastIndex returns the index of the last entry, or -1 if the log is empty.
func (l *LogStore) LastIndex() int64 {
	if len(l.entries) == 0 {
		return -1
	}
	return int64(l.entries[len(l.entries)-1].Index)
}

// All returns a copy of every entry in the log.
func (l *LogStore) All() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// From returns every entry with Index >= fromIndex.
func (l *LogStore) From(fromIndex uint64) []LogEntry {
	var out []LogEntry
	for _, e := range l.entries {
		if e.Index >= fromIndex {
			out = append(out, e)
		}
	}
	return out
}

// Append adds entry to the log and persists it. entry.Index must equal the
// current length of the log (spec §3's log-density invariant: indices form
// a contiguous prefix 0..N-1 with no gaps).
func (l *LogStore) Append(entry LogEntry) error {
	if int(entry.Index) != len(l.entries) {
		return fmt.Errorf("log append out of order: got index %d, expected %d", entry.Index, len(l.entries))
	}
	l.entries = append(l.entries, entry)
	if err := WriteFileAtomic(l.path, l.entries); err != nil {
		l.entries = l.entries[:len(l.entries)-1]
		return err
	}
	return nil
}
