package consensus

import (
	"context"

	"github.com/cuemby/printforge/internal/domain"
	"github.com/cuemby/printforge/internal/statemachine"
	"github.com/cuemby/printforge/internal/storage"
)

// syncFromLeader implements the rejoin path (spec §4.5, step 2 then 3): a
// node that has just started, or that was partitioned and is rejoining,
// asks the registry for the current LeaderPointer, confirms the leader is
// still reachable, pulls the leader's full /state snapshot as its new
// baseline, and then tops up with whatever log entries were appended after
// that snapshot was taken. Pulling the full snapshot first (rather than
// relying solely on a contiguous log replay) is what keeps a follower whose
// log has a gap from getting permanently stuck: the snapshot always gives
// it a correct baseline regardless of log contiguity. It is best effort: if
// there is no known leader yet, or the leader cannot be reached, the node
// simply starts as a follower and catches up on a later sync.
func (n *Node) syncFromLeader(ctx context.Context) {
	leader, err := n.reg.GetLeader()
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to read leader pointer for rejoin sync")
		return
	}
	if leader == nil {
		return
	}
	if leader.Host == n.host && leader.Port == n.port {
		return
	}

	status, err := n.client.getStatus(ctx, n.cfg.RPCTimeout, leader.Host, leader.Port)
	if err != nil {
		n.logger.Info().Err(err).Str("leader", leader.NodeID).Msg("leader unreachable during rejoin sync")
		return
	}

	snap, err := n.client.getState(ctx, n.cfg.RPCTimeout, leader.Host, leader.Port)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to pull full state from leader during rejoin sync")
		return
	}

	n.mu.Lock()
	n.state = &domain.State{
		Printers:  snap.Printers,
		Filaments: snap.Filaments,
		Jobs:      snap.Jobs,
	}
	n.appliedIndex = snap.LogIndex
	fromIndex := uint64(n.appliedIndex + 1)
	n.mu.Unlock()

	entries, err := n.client.getLogsFrom(ctx, n.cfg.RPCTimeout, leader.Host, leader.Port, fromIndex)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to pull logs from leader during rejoin sync")
		entries = nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, e := range entries {
		if int64(e.Index) <= n.appliedIndex {
			continue
		}
		// The domain state is authoritative (the snapshot we just adopted,
		// topped up here); always apply. Our own dense log is advisory and
		// only used for serving /logs to other followers, so a gap left by
		// jumping the baseline forward to the snapshot's index is harmless
		// — just skip the append rather than losing the state update too.
		if _, err := statemachine.Apply(n.state, e.Command); err != nil {
			n.logger.Warn().Err(err).Uint64("index", e.Index).
				Msg("skipping unreplayable entry during rejoin sync")
		}
		if int(e.Index) == n.logStore.Len() {
			if err := n.logStore.Append(storage.LogEntry{
				Index: e.Index, Term: e.Term, Command: e.Command, Timestamp: e.Timestamp,
			}); err != nil {
				n.logger.Warn().Err(err).Msg("failed to append entry pulled during rejoin sync")
			}
		}
		n.appliedIndex = int64(e.Index)
	}

	if status.Term > n.term {
		n.term = status.Term
		n.votedFor = ""
	}
	if err := n.persistSnapshotLocked(); err != nil {
		n.logger.Warn().Err(err).Msg("failed to persist state after rejoin sync")
	}
	n.logger.Info().Int64("applied_index", n.appliedIndex).Msg("rejoin sync complete")
}

func (n *Node) adoptTermFromLeader(term uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if term > n.term {
		n.term = term
		n.votedFor = ""
	}
}
