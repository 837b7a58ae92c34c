// Package domain defines the 3D-print workflow entities replicated by the
// cluster: printers, filaments, print jobs, and the aggregate State that
// holds all three. The state machine package applies validated commands to
// a State; this package owns only the data and the invariants on it.
package domain
