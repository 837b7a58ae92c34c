package consensus

import (
	"context"
	"time"

	"github.com/cuemby/printforge/internal/metrics"
	"github.com/cuemby/printforge/internal/registry"
)

// runHeartbeatDriver sends a heartbeat to every alive peer once per
// HeartbeatPeriod, but only while this node believes it is leader (spec
// §4.3 step 4).
func (n *Node) runHeartbeatDriver(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.sendHeartbeats(ctx)
		}
	}
}

func (n *Node) sendHeartbeats(ctx context.Context) {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	term := n.term
	n.mu.Unlock()

	peers, err := n.reg.ListAliveExceptSelf(n.self())
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to list peers for heartbeat")
		return
	}

	for _, p := range peers {
		resp, err := n.client.sendHeartbeat(ctx, n.cfg.RPCTimeout, p.Host, p.Port, HeartbeatRequest{
			Term:     term,
			LeaderID: n.nodeID,
		})
		if err != nil {
			n.logger.Warn().Err(err).Str("peer", p.Addr()).Msg("heartbeat failed, marking peer dead")
			if markErr := n.reg.Mark(p.Host, p.Port, registry.Dead); markErr != nil {
				n.logger.Warn().Err(markErr).Msg("failed to mark peer dead")
			}
			continue
		}
		if !resp.Success {
			n.logger.Warn().Str("peer", p.Addr()).Msg("heartbeat rejected, peer has higher term")
		}
	}
}

// runDiscoveryDriver periodically recomputes this node's view of alive
// peers, so previously unreachable nodes are retried rather than left dead
// forever (spec §4.4's rejoin path relies on peers rediscovering each
// other).
func (n *Node) runDiscoveryDriver(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.runDiscovery(ctx)
		}
	}
}

// runDiscovery pings every peer the registry knows about, regardless of its
// last recorded status, and updates the registry to match reality. If the
// alive set grew since the previous round, it triggers a follower sync
// (spec §4.5: sync is driven "via peer discovery (periodic, default 30s)
// or a heartbeat"), since a peer coming back alive is exactly the moment a
// previously diverged follower can catch back up.
func (n *Node) runDiscovery(ctx context.Context) {
	peers, err := n.reg.List()
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to list peers for discovery")
		return
	}

	nowAlive := make(map[string]bool, len(peers))
	grew := false
	for _, p := range peers {
		if p.Host == n.host && p.Port == n.port {
			continue
		}
		_, err := n.client.getStatus(ctx, n.cfg.RPCTimeout, p.Host, p.Port)
		status := registry.Alive
		if err != nil {
			status = registry.Dead
		}
		if err := n.reg.Mark(p.Host, p.Port, status); err != nil {
			n.logger.Warn().Err(err).Str("peer", p.Addr()).Msg("failed to update peer status during discovery")
		}
		if status == registry.Alive {
			nowAlive[p.Addr()] = true
			if !n.knownAliveAddrs[p.Addr()] {
				grew = true
			}
		}
	}
	n.knownAliveAddrs = nowAlive

	if grew {
		n.logger.Info().Msg("alive peer set grew during discovery, syncing from leader")
		n.syncFromLeader(ctx)
	}
}

// HandleHeartbeat implements the follower side of the heartbeat RPC (spec
// §4.3 step 4 / §4.4): a heartbeat from a term at least as high as ours
// resets the election timer and, if we believed ourselves leader or
// candidate, demotes us to follower.
func (n *Node) HandleHeartbeat(req HeartbeatRequest) HeartbeatResponse {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term < n.term {
		return HeartbeatResponse{Success: false}
	}

	if req.Term > n.term {
		n.term = req.Term
		n.votedFor = ""
	}
	wasLeader := n.role == Leader
	n.role = Follower
	n.resetElectionTimeoutLocked()
	if wasLeader {
		metrics.RaftIsLeader.Set(0)
		n.logger.Info().Str("leader", req.LeaderID).Msg("stepping down, observed heartbeat from current leader")
	}
	return HeartbeatResponse{Success: true}
}
