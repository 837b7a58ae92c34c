// Package integration drives real consensus.Node and rpc.Server instances
// over loopback HTTP, exercising the end-to-end scenarios spec.md §8
// describes (election, leader failure, and rejoin sync) rather than the
// single-node paths covered by the package-level unit tests.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/printforge/internal/consensus"
	"github.com/cuemby/printforge/internal/rpc"
)

// testNode bundles a running consensus.Node with the rpc.Server fronting it,
// plus the cancel func that stops its drivers.
type testNode struct {
	node   *consensus.Node
	server *rpc.Server
	cancel context.CancelFunc
	port   int
}

func startCluster(t *testing.T, n int, basePort int, registryPath string) []*testNode {
	t.Helper()

	timing := consensus.Config{
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatPeriod:    50 * time.Millisecond,
		DiscoveryInterval:  200 * time.Millisecond,
		ElectionTick:       20 * time.Millisecond,
		RPCTimeout:         200 * time.Millisecond,
		ReplicateTimeout:   200 * time.Millisecond,
	}

	nodes := make([]*testNode, 0, n)
	dir := t.TempDir()

	for i := 0; i < n; i++ {
		port := basePort + i
		nodeID := fmt.Sprintf("node_%d", port)

		node, err := consensus.NewNode(consensus.NodeConfig{
			NodeID:       nodeID,
			Host:         "127.0.0.1",
			Port:         port,
			SnapshotPath: fmt.Sprintf("%s/state_%s.json", dir, nodeID),
			LogPath:      fmt.Sprintf("%s/log_%d.json", dir, port),
			RegistryPath: registryPath,
			Timing:       timing,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, node.Start(ctx))

		server := rpc.NewServer(node, fmt.Sprintf("127.0.0.1:%d", port))
		go server.Start()

		nodes = append(nodes, &testNode{node: node, server: server, cancel: cancel, port: port})
	}

	t.Cleanup(func() {
		for _, tn := range nodes {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			_ = tn.server.Stop(shutdownCtx)
			shutdownCancel()
			tn.node.Stop()
			tn.cancel()
		}
	})

	return nodes
}

func waitForLeader(t *testing.T, nodes []*testNode, timeout time.Duration) *testNode {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, tn := range nodes {
			if tn.node.IsLeader() {
				return tn
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no leader elected within timeout")
	return nil
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

// TestClusterElectsASingleLeader covers spec §8 scenario 1: three nodes
// booted together converge on exactly one leader.
func TestClusterElectsASingleLeader(t *testing.T) {
	registryPath := t.TempDir() + "/peers.json"
	nodes := startCluster(t, 3, 15101, registryPath)

	leader := waitForLeader(t, nodes, 5*time.Second)
	require.NotNil(t, leader)

	leaderCount := 0
	for _, tn := range nodes {
		if tn.node.IsLeader() {
			leaderCount++
		}
	}
	require.Equal(t, 1, leaderCount, "exactly one node should hold leadership")
}

// TestLeaderFailureTriggersReElection covers spec §8 scenario 5: killing the
// leader causes the remaining nodes to elect a new one.
func TestLeaderFailureTriggersReElection(t *testing.T) {
	registryPath := t.TempDir() + "/peers.json"
	nodes := startCluster(t, 3, 15201, registryPath)

	firstLeader := waitForLeader(t, nodes, 5*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = firstLeader.server.Stop(shutdownCtx)
	cancel()
	firstLeader.node.Stop()
	firstLeader.cancel()

	var remaining []*testNode
	for _, tn := range nodes {
		if tn != firstLeader {
			remaining = append(remaining, tn)
		}
	}

	newLeader := waitForLeader(t, remaining, 5*time.Second)
	require.NotEqual(t, firstLeader.port, newLeader.port, "a different node must take over")
}

// TestRejoinSyncsFollowerAfterRestart covers spec §8 scenario 6: a follower
// that misses commands while stopped catches up to the leader's log on
// rejoin rather than starting from empty state.
func TestRejoinSyncsFollowerAfterRestart(t *testing.T) {
	registryPath := t.TempDir() + "/peers.json"
	nodes := startCluster(t, 3, 15301, registryPath)

	leader := waitForLeader(t, nodes, 5*time.Second)

	var follower *testNode
	for _, tn := range nodes {
		if tn != leader {
			follower = tn
			break
		}
	}
	require.NotNil(t, follower)

	// stop the follower entirely, as if its process had crashed.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = follower.server.Stop(shutdownCtx)
	cancel()
	follower.node.Stop()
	follower.cancel()

	resp := postJSON(t, fmt.Sprintf("http://127.0.0.1:%d/api/v1/printers", leader.port),
		`{"id":"printer-1","company":"Prusa","model":"MK4"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// restart the follower on the same node ID and port but with fresh, empty
	// state files: it must recover the command it missed via its startup
	// sync from the leader.
	dir := t.TempDir()
	nodeID := fmt.Sprintf("node_%d", follower.port)
	restarted, err := consensus.NewNode(consensus.NodeConfig{
		NodeID:       nodeID,
		Host:         "127.0.0.1",
		Port:         follower.port,
		SnapshotPath: fmt.Sprintf("%s/state_%s.json", dir, nodeID),
		LogPath:      fmt.Sprintf("%s/log_%d.json", dir, follower.port),
		RegistryPath: registryPath,
		Timing: consensus.Config{
			ElectionTimeoutMin: 150 * time.Millisecond,
			ElectionTimeoutMax: 300 * time.Millisecond,
			HeartbeatPeriod:    50 * time.Millisecond,
			DiscoveryInterval:  200 * time.Millisecond,
			ElectionTick:       20 * time.Millisecond,
			RPCTimeout:         200 * time.Millisecond,
			ReplicateTimeout:   200 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	ctx, restartCancel := context.WithCancel(context.Background())
	defer restartCancel()
	require.NoError(t, restarted.Start(ctx))
	defer restarted.Stop()

	snap := restarted.Snapshot()
	_, found := snap.Printers["printer-1"]
	require.True(t, found, "rejoining follower must replay commands missed while it was down")
}
