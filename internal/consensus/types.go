package consensus

import (
	"time"

	"github.com/cuemby/printforge/internal/domain"
)

// Role is a node's position in the consensus protocol.
type Role string

const (
	Follower  Role = "follower"
	Candidate Role = "candidate"
	Leader    Role = "leader"
)

// Config holds the timing parameters spec §4.3 names. Zero-value fields are
// replaced with the spec's defaults by NewNode.
type Config struct {
	ElectionTimeoutMin time.Duration // default 5s
	ElectionTimeoutMax time.Duration // default 10s
	HeartbeatPeriod    time.Duration // default 2s
	DiscoveryInterval  time.Duration // default 30s
	ElectionTick       time.Duration // default 500ms
	RPCTimeout         time.Duration // default 1s, used for vote/heartbeat
	ReplicateTimeout   time.Duration // default 2s
}

func (c Config) withDefaults() Config {
	if c.ElectionTimeoutMin == 0 {
		c.ElectionTimeoutMin = 5 * time.Second
	}
	if c.ElectionTimeoutMax == 0 {
		c.ElectionTimeoutMax = 10 * time.Second
	}
	if c.HeartbeatPeriod == 0 {
		c.HeartbeatPeriod = 2 * time.Second
	}
	if c.DiscoveryInterval == 0 {
		c.DiscoveryInterval = 30 * time.Second
	}
	if c.ElectionTick == 0 {
		c.ElectionTick = 500 * time.Millisecond
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = 1 * time.Second
	}
	if c.ReplicateTimeout == 0 {
		c.ReplicateTimeout = 2 * time.Second
	}
	return c
}

// StatusView is the response shape for GET /status (spec §6).
type StatusView struct {
	NodeID string   `json:"node_id"`
	Role   Role     `json:"role"`
	Term   uint64   `json:"term"`
	Peers  []string `json:"peers"`
}

// StateSnapshotView is the response shape for GET /state (spec §6): a full
// snapshot of the domain state plus the responder's current log index.
type StateSnapshotView struct {
	Printers  map[string]domain.Printer  `json:"printers"`
	Filaments map[string]domain.Filament `json:"filaments"`
	Jobs      map[string]domain.Job      `json:"jobs"`
	LogIndex  int64                      `json:"log_index"`
}
