// Package registry implements the shared Peer Registry (spec §4.6): a single
// config/peers.json file listing every cluster member's liveness and the
// current leader pointer. It is the one cross-process shared resource in
// the system (spec §5), so every read-modify-write cycle is bracketed by an
// exclusive advisory file lock (github.com/gofrs/flock) on a sibling lock
// file before the JSON document is rewritten whole (spec §9's suggested
// remedy for the whole-file-rewrite race).
package registry
