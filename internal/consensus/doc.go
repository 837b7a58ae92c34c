// Package consensus implements the per-node replicated state-machine
// engine: role/term/vote, the election timer and heartbeat emitter, the
// replication driver, and follower sync-on-rejoin (spec §4.3, §4.5).
//
// Node owns exactly one domain.State instance and exposes a narrow
// interface (HandleVote, HandleHeartbeat, HandleReplicate, SubmitCommand,
// Snapshot, LogsFrom) borrowed by the RPC surface under the node-wide
// mutex; Node never calls back into the RPC layer (spec §9's "cyclic
// reference" re-architecture note).
package consensus
