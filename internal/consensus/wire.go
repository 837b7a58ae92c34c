package consensus

import (
	"time"

	"github.com/cuemby/printforge/internal/statemachine"
)

// Wire request/response shapes for the peer-to-peer RPC contract in
// spec §6. The rpc package decodes HTTP bodies into these types and calls
// the matching Node method; Node's own outbound calls to peers (election
// fan-out, heartbeat emission, replication, follower sync) use the same
// types, so the wire contract has exactly one definition.

type VoteRequest struct {
	Term        uint64 `json:"term"`
	CandidateID string `json:"candidate_id"`
}

type VoteResponse struct {
	VoteGranted bool `json:"vote_granted"`
}

type HeartbeatRequest struct {
	Term     uint64 `json:"term"`
	LeaderID string `json:"leader_id"`
}

type HeartbeatResponse struct {
	Success bool `json:"success"`
}

type ReplicateRequest struct {
	Term     uint64              `json:"term"`
	LeaderID string              `json:"leader_id"`
	Command  statemachine.Command `json:"command"`
	LogIndex uint64              `json:"log_index"`
}

type ReplicateResponse struct {
	Success  bool   `json:"success"`
	LogIndex *uint64 `json:"log_index,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LogEntryView is the wire shape of one entry in the GET /logs/<from_index>
// response (spec §6).
type LogEntryView struct {
	Index     uint64                `json:"index"`
	Term      uint64                `json:"term"`
	Command   statemachine.Command  `json:"command"`
	Timestamp time.Time             `json:"timestamp"`
}
