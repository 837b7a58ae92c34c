package consensus

// ForceLeaderForTest sets n's role to Leader without running an election.
// It exists so other packages' tests (rpc, router) can exercise the
// leader-only code paths without standing up a full multi-node cluster.
func ForceLeaderForTest(n *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.role = Leader
}
