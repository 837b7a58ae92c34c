// Package storage persists the two per-node files spec §4.2 describes: the
// state snapshot (term, vote, domain state) and the command log. Both files
// are rewritten via write-to-temp-then-rename so a crash never leaves a
// partially written file on disk.
package storage
