package consensus

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/printforge/internal/domain"
	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/registry"
	"github.com/cuemby/printforge/internal/statemachine"
	"github.com/cuemby/printforge/internal/storage"
)

// NodeConfig configures a Node at construction time.
type NodeConfig struct {
	NodeID       string
	Host         string
	Port         int
	SnapshotPath string
	LogPath      string
	RegistryPath string
	Timing       Config
}

// Node is the per-node consensus engine: role, term, vote, the in-memory
// domain state, and the drivers that move it (spec §4.3).
type Node struct {
	mu sync.Mutex

	nodeID string
	host   string
	port   int

	role            Role
	term            uint64
	votedFor        string
	votesReceived   int
	lastHeartbeat   time.Time
	electionTimeout time.Duration

	state        *domain.State
	appliedIndex int64

	snapStore *storage.SnapshotStore
	logStore  *storage.LogStore
	reg       *registry.Registry
	client    *peerClient
	cfg       Config
	rng       *rand.Rand

	logger zerolog.Logger

	knownAliveAddrs map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode constructs a Node and loads its durable state from disk. It does
// not yet register with the registry or start any drivers; call Start for
// that.
func NewNode(cfg NodeConfig) (*Node, error) {
	timing := cfg.Timing.withDefaults()

	logStore, err := storage.NewLogStore(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("loading log: %w", err)
	}

	n := &Node{
		nodeID:          cfg.NodeID,
		host:            cfg.Host,
		port:            cfg.Port,
		role:            Follower,
		snapStore:       storage.NewSnapshotStore(cfg.SnapshotPath),
		logStore:        logStore,
		reg:             registry.New(cfg.RegistryPath),
		client:          newPeerClient(),
		cfg:             timing,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano() + int64(cfg.Port))),
		logger:          log.WithNodeID(cfg.NodeID),
		knownAliveAddrs: make(map[string]bool),
	}

	if err := n.loadDurableState(); err != nil {
		return nil, err
	}
	n.resetElectionTimeoutLocked()
	return n, nil
}

// loadDurableState implements spec §4.2's startup order: load the
// snapshot, then the log; if the log holds entries beyond what the
// snapshot reflects, replay the tail through the state machine.
func (n *Node) loadDurableState() error {
	snap, err := n.snapStore.Load()
	if err != nil {
		return err
	}
	n.term = snap.Term
	n.votedFor = snap.VotedFor
	n.appliedIndex = snap.AppliedIndex
	n.state = &domain.State{
		Printers:  snap.Printers,
		Filaments: snap.Filaments,
		Jobs:      snap.Jobs,
	}

	for _, entry := range n.logStore.All() {
		if int64(entry.Index) <= n.appliedIndex {
			continue
		}
		if _, err := statemachine.Apply(n.state, entry.Command); err != nil {
			n.logger.Warn().Err(err).Uint64("index", entry.Index).
				Msg("skipping unreplayable log entry on startup")
		}
		n.appliedIndex = int64(entry.Index)
	}

	if n.appliedIndex != snap.AppliedIndex {
		return n.persistSnapshotLocked()
	}
	return nil
}

// self returns this node's Peer record as registered in the Peer Registry.
func (n *Node) self() registry.Peer {
	return registry.Peer{NodeID: n.nodeID, Host: n.host, Port: n.port, Status: registry.Alive}
}

// Start registers the node as alive and starts the election, heartbeat and
// discovery drivers (the node-internal three of spec §5's four concurrent
// activities; the RPC acceptor lives in the rpc package). It returns once
// the drivers are running.
func (n *Node) Start(ctx context.Context) error {
	if err := n.reg.Register(n.self()); err != nil {
		return fmt.Errorf("registering self: %w", err)
	}

	n.syncFromLeader(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(3)
	go n.runElectionDriver(runCtx)
	go n.runHeartbeatDriver(runCtx)
	go n.runDiscoveryDriver(runCtx)

	n.logger.Info().Msg("node started")
	return nil
}

// Stop marks the node dead in the registry and stops all drivers. If every
// peer is now dead, the LeaderPointer is cleared (spec §6 shutdown).
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()

	if err := n.reg.Mark(n.host, n.port, registry.Dead); err != nil {
		n.logger.Warn().Err(err).Msg("failed to mark self dead on shutdown")
	}
	if err := n.reg.ClearLeaderIfAllDead(); err != nil {
		n.logger.Warn().Err(err).Msg("failed to clear leader pointer on shutdown")
	}
	n.logger.Info().Msg("node stopped")
}

func (n *Node) resetElectionTimeoutLocked() {
	n.lastHeartbeat = time.Now()
	span := n.cfg.ElectionTimeoutMax - n.cfg.ElectionTimeoutMin
	jitter := time.Duration(0)
	if span > 0 {
		jitter = time.Duration(n.rng.Int63n(int64(span)))
	}
	n.electionTimeout = n.cfg.ElectionTimeoutMin + jitter
}

// persistSnapshotLocked writes the current in-memory state and consensus
// variables to disk. Caller must hold n.mu.
func (n *Node) persistSnapshotLocked() error {
	return n.snapStore.Save(storage.Snapshot{
		Term:         n.term,
		VotedFor:     n.votedFor,
		Printers:     n.state.Printers,
		Filaments:    n.state.Filaments,
		Jobs:         n.state.Jobs,
		AppliedIndex: n.appliedIndex,
	})
}

// IsLeader reports whether this node currently believes it is the leader.
func (n *Node) IsLeader() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role == Leader
}

// Status returns the current role/term/peers view for GET /status.
func (n *Node) Status() (StatusView, error) {
	n.mu.Lock()
	role, term := n.role, n.term
	n.mu.Unlock()

	peers, err := n.reg.List()
	if err != nil {
		return StatusView{}, err
	}
	addrs := make([]string, 0, len(peers))
	for _, p := range peers {
		addrs = append(addrs, p.Addr())
	}
	return StatusView{NodeID: n.nodeID, Role: role, Term: term, Peers: addrs}, nil
}

// Snapshot returns a point-in-time copy of the domain state plus the
// responder's current log index, for GET /state.
func (n *Node) Snapshot() StateSnapshotView {
	n.mu.Lock()
	defer n.mu.Unlock()
	clone := n.state.Clone()
	return StateSnapshotView{
		Printers:  clone.Printers,
		Filaments: clone.Filaments,
		Jobs:      clone.Jobs,
		LogIndex:  n.appliedIndex,
	}
}

// LogsFrom returns every log entry with Index >= fromIndex, for
// GET /logs/<from_index>.
func (n *Node) LogsFrom(fromIndex uint64) []LogEntryView {
	entries := n.logStore.From(fromIndex)
	out := make([]LogEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryView{Index: e.Index, Term: e.Term, Command: e.Command, Timestamp: e.Timestamp})
	}
	return out
}
