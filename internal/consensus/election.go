package consensus

import (
	"context"
	"time"

	"github.com/cuemby/printforge/internal/metrics"
	"github.com/cuemby/printforge/internal/registry"
)

// runElectionDriver wakes every ElectionTick and starts an election if no
// heartbeat or granted vote has reset the timer within electionTimeout
// (spec §4.3).
func (n *Node) runElectionDriver(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.ElectionTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.maybeStartElection(ctx)
		}
	}
}

func (n *Node) maybeStartElection(ctx context.Context) {
	n.mu.Lock()
	if n.role == Leader || time.Since(n.lastHeartbeat) <= n.electionTimeout {
		n.mu.Unlock()
		return
	}
	n.term++
	n.role = Candidate
	n.votedFor = n.nodeID
	n.votesReceived = 1
	term := n.term
	err := n.persistSnapshotLocked()
	n.mu.Unlock()

	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to persist state before election")
	}
	metrics.ElectionsTotal.Inc()
	metrics.RaftTerm.Set(float64(term))
	n.logger.Info().Uint64("term", term).Msg("starting election")

	n.runElection(ctx, term)
}

// runElection fans RequestVote out to every alive peer and, on majority,
// transitions to leader (spec §4.3 steps 2-4).
func (n *Node) runElection(ctx context.Context, term uint64) {
	peers, err := n.reg.ListAliveExceptSelf(n.self())
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to list peers for election")
		peers = nil
	}

	votes := 1 // self
	for _, p := range peers {
		resp, err := n.client.requestVote(ctx, n.cfg.RPCTimeout, p.Host, p.Port, VoteRequest{
			Term:        term,
			CandidateID: n.nodeID,
		})
		if err != nil {
			n.logger.Warn().Err(err).Str("peer", p.Addr()).Msg("vote request failed, marking peer dead")
			if markErr := n.reg.Mark(p.Host, p.Port, registry.Dead); markErr != nil {
				n.logger.Warn().Err(markErr).Msg("failed to mark peer dead")
			}
			continue
		}
		if resp.VoteGranted {
			votes++
		}
	}

	majority := (len(peers)+1)/2 + 1

	n.mu.Lock()
	stillCandidateForTerm := n.role == Candidate && n.term == term
	if !stillCandidateForTerm {
		n.mu.Unlock()
		return
	}
	if votes >= majority {
		n.role = Leader
		n.resetElectionTimeoutLocked()
		n.mu.Unlock()

		metrics.RaftIsLeader.Set(1)
		n.logger.Info().Uint64("term", term).Int("votes", votes).Msg("elected leader")
		n.onBecomeLeader()
	} else {
		n.role = Follower
		n.resetElectionTimeoutLocked()
		n.mu.Unlock()
		metrics.RaftIsLeader.Set(0)
		n.logger.Info().Uint64("term", term).Int("votes", votes).Msg("election lost, returning to follower")
	}
}

// onBecomeLeader publishes this node as the LeaderPointer so clients and
// the router can find it without polling every peer (spec §4.3 step 3).
func (n *Node) onBecomeLeader() {
	if err := n.reg.SetLeader(n.self()); err != nil {
		n.logger.Warn().Err(err).Msg("failed to publish self as leader")
	}
}

// HandleVote implements the voter side of RequestVote (spec §4.3 step 2).
// A vote is granted iff the requester's term equals the voter's term (after
// any term bump from observing a higher term) and the voter has not yet
// voted this term, or already voted for this same candidate (a repeated
// request is granted again).
func (n *Node) HandleVote(req VoteRequest) VoteResponse {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term > n.term {
		n.term = req.Term
		n.votedFor = ""
		n.role = Follower
	}

	if req.Term == n.term && (n.votedFor == "" || n.votedFor == req.CandidateID) {
		n.votedFor = req.CandidateID
		if err := n.persistSnapshotLocked(); err != nil {
			n.logger.Warn().Err(err).Msg("failed to persist vote")
		}
		n.resetElectionTimeoutLocked()
		n.logger.Info().Uint64("term", req.Term).Str("candidate", req.CandidateID).Msg("granted vote")
		return VoteResponse{VoteGranted: true}
	}
	return VoteResponse{VoteGranted: false}
}
