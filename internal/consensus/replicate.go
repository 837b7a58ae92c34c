package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/printforge/internal/metrics"
	"github.com/cuemby/printforge/internal/registry"
	"github.com/cuemby/printforge/internal/statemachine"
	"github.com/cuemby/printforge/internal/storage"
)

// ErrNotLeader is returned by SubmitCommand when this node does not
// currently believe it is the leader (spec §4.4: writes must go to the
// leader).
var ErrNotLeader = errors.New("this node is not the leader")

// ErrQuorumNotReached is returned by SubmitCommand when the command was
// applied and persisted locally but fewer than a majority of alive peers
// acknowledged the replicate call (spec §4.4 step 4: "The mutation is
// reported successful to the client if the success count exceeds
// ⌊(alive_peers + 1)/2⌋"). The command still stands locally — there is no
// rollback — but the client must be told the write is not yet durable
// cluster-wide.
var ErrQuorumNotReached = errors.New("command applied locally but did not reach a quorum of peers")

// SubmitCommand is the leader-side mutation entry point (spec §4.1, §4.4).
// It validates and applies cmd to the local state immediately, appends it
// to the local log, replicates it to every alive peer, and only reports
// success to the caller once a majority of alive peers (including the
// leader itself) have acknowledged it. Note this quorum-ack gate is
// distinct from spec §9's open question about log-matching/prev-index
// checks: that question is about whether a peer validates the previous
// entry before accepting a new one (it doesn't, by design), not about
// whether the client response waits for a quorum (it does).
func (n *Node) SubmitCommand(ctx context.Context, cmd statemachine.Command) (statemachine.Result, error) {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return statemachine.Result{}, ErrNotLeader
	}

	result, err := statemachine.Apply(n.state, cmd)
	if err != nil {
		n.mu.Unlock()
		return statemachine.Result{}, err
	}

	index := uint64(n.logStore.Len())
	term := n.term
	entry := storage.LogEntry{Index: index, Term: term, Command: cmd, Timestamp: time.Now()}
	if err := n.logStore.Append(entry); err != nil {
		n.mu.Unlock()
		return statemachine.Result{}, fmt.Errorf("appending to log: %w", err)
	}
	n.appliedIndex = int64(index)
	if err := n.persistSnapshotLocked(); err != nil {
		n.logger.Warn().Err(err).Msg("failed to persist state after accepted command")
	}
	n.mu.Unlock()

	if !n.replicateToPeers(ctx, term, cmd, index) {
		return statemachine.Result{}, ErrQuorumNotReached
	}
	return result, nil
}

// replicateToPeers fans the command out to every alive peer and reports
// whether a majority of alive peers (including the leader) acknowledged it.
func (n *Node) replicateToPeers(ctx context.Context, term uint64, cmd statemachine.Command, index uint64) bool {
	peers, err := n.reg.ListAliveExceptSelf(n.self())
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to list peers for replication")
		peers = nil
	}

	acked := 1 // the leader itself already holds the entry
	for _, p := range peers {
		resp, err := n.client.sendReplicate(ctx, n.cfg.ReplicateTimeout, p.Host, p.Port, ReplicateRequest{
			Term:     term,
			LeaderID: n.nodeID,
			Command:  cmd,
			LogIndex: index,
		})
		if err != nil {
			n.logger.Warn().Err(err).Str("peer", p.Addr()).Msg("replicate failed, marking peer dead")
			if markErr := n.reg.Mark(p.Host, p.Port, registry.Dead); markErr != nil {
				n.logger.Warn().Err(markErr).Msg("failed to mark peer dead")
			}
			continue
		}
		if !resp.Success {
			n.logger.Warn().Str("peer", p.Addr()).Str("error", resp.Error).
				Msg("peer rejected replicated command, it will catch up on next rejoin sync")
			continue
		}
		acked++
	}

	quorum := (len(peers)+1)/2 + 1
	if acked >= quorum {
		metrics.ReplicateSuccessTotal.Inc()
		return true
	}
	metrics.ReplicateFailureTotal.Inc()
	return false
}

// HandleReplicate implements the follower side of the replicate RPC (spec
// §4.4): apply the command at the given log index if it is the next dense
// slot, otherwise reject so the follower can fall back to a full rejoin
// sync rather than silently diverging.
func (n *Node) HandleReplicate(req ReplicateRequest) ReplicateResponse {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term < n.term {
		return ReplicateResponse{Success: false, Error: "stale term"}
	}
	if req.Term == n.term && n.role == Leader {
		// A term collision: two nodes both believe they are leader for the
		// same term. Reject rather than demote and accept (spec §4.4: "A
		// follower whose role is leader rejects it").
		return ReplicateResponse{Success: false, Error: "this node is also leader for this term"}
	}
	if req.Term > n.term {
		n.term = req.Term
		n.votedFor = ""
	}
	n.role = Follower
	n.resetElectionTimeoutLocked()

	next := uint64(n.logStore.Len())
	if req.LogIndex != next {
		return ReplicateResponse{Success: false, LogIndex: &next, Error: "log index mismatch, rejoin sync required"}
	}

	if _, err := statemachine.Apply(n.state, req.Command); err != nil {
		n.logger.Warn().Err(err).Msg("rejecting replicated command that failed local validation")
		return ReplicateResponse{Success: false, Error: err.Error()}
	}

	entry := storage.LogEntry{Index: req.LogIndex, Term: req.Term, Command: req.Command, Timestamp: time.Now()}
	if err := n.logStore.Append(entry); err != nil {
		return ReplicateResponse{Success: false, Error: err.Error()}
	}
	n.appliedIndex = int64(req.LogIndex)
	if err := n.persistSnapshotLocked(); err != nil {
		n.logger.Warn().Err(err).Msg("failed to persist state after replicated command")
	}

	idx := req.LogIndex
	return ReplicateResponse{Success: true, LogIndex: &idx}
}
