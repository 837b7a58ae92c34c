package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/metrics"
)

// PeerStatus is the liveness of a registered peer.
type PeerStatus string

const (
	Alive PeerStatus = "alive"
	Dead  PeerStatus = "dead"
)

// Peer is a cluster member as recorded in the shared registry.
type Peer struct {
	NodeID string     `json:"node_id"`
	Host   string     `json:"host"`
	Port   int        `json:"port"`
	Status PeerStatus `json:"status"`
}

// Addr returns "host:port", the wire identity used to key a peer.
func (p Peer) Addr() string { return fmt.Sprintf("%s:%d", p.Host, p.Port) }

// LeaderPointer identifies the currently elected leader, or is nil while no
// leader is known.
type LeaderPointer struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	NodeID string `json:"node_id"`
}

type document struct {
	Peers  []Peer         `json:"peers"`
	Leader *LeaderPointer `json:"leader"`
}

// Registry is a handle onto the shared config/peers.json file.
type Registry struct {
	path     string
	lockPath string
}

// New returns a Registry backed by the file at path.
func New(path string) *Registry {
	return &Registry{
		path:     path,
		lockPath: path + ".lock",
	}
}

func (r *Registry) withLock(fn func(doc *document) (*document, error)) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	fl := flock.New(r.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}
	defer fl.Unlock()

	doc, err := r.readLocked()
	if err != nil {
		return err
	}

	updated, err := fn(doc)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return r.writeLocked(updated)
}

func (r *Registry) readLocked() (*document, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.WithComponent("registry").Warn().Err(err).Msg("corrupt peer registry, resetting")
		return &document{}, nil
	}
	return &doc, nil
}

func (r *Registry) writeLocked(doc *document) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, r.path)
}

// Register upserts self into the peer list with the given liveness.
func (r *Registry) Register(self Peer) error {
	return r.withLock(func(doc *document) (*document, error) {
		found := false
		for i, p := range doc.Peers {
			if p.Host == self.Host && p.Port == self.Port {
				doc.Peers[i] = self
				found = true
				break
			}
		}
		if !found {
			doc.Peers = append(doc.Peers, self)
		}
		return doc, nil
	})
}

// Mark sets the status of the peer identified by host:port, if present.
func (r *Registry) Mark(host string, port int, status PeerStatus) error {
	return r.withLock(func(doc *document) (*document, error) {
		for i, p := range doc.Peers {
			if p.Host == host && p.Port == port {
				doc.Peers[i].Status = status
				return doc, nil
			}
		}
		return nil, nil
	})
}

// ListAliveExceptSelf returns every peer marked alive other than self.
func (r *Registry) ListAliveExceptSelf(self Peer) ([]Peer, error) {
	doc, err := r.readSnapshot()
	if err != nil {
		return nil, err
	}
	var alive []Peer
	for _, p := range doc.Peers {
		if p.Status == Alive && !(p.Host == self.Host && p.Port == self.Port) {
			alive = append(alive, p)
		}
	}
	metrics.PeersAlive.Set(float64(len(alive)))
	return alive, nil
}

// SetLeader publishes self as the current leader.
func (r *Registry) SetLeader(self Peer) error {
	return r.withLock(func(doc *document) (*document, error) {
		doc.Leader = &LeaderPointer{Host: self.Host, Port: self.Port, NodeID: self.NodeID}
		return doc, nil
	})
}

// GetLeader returns the current leader pointer, or nil if none is known.
func (r *Registry) GetLeader() (*LeaderPointer, error) {
	doc, err := r.readSnapshot()
	if err != nil {
		return nil, err
	}
	return doc.Leader, nil
}

// ClearLeaderIfAllDead clears the leader pointer when every registered peer
// (including the leader itself) is marked dead.
func (r *Registry) ClearLeaderIfAllDead() error {
	return r.withLock(func(doc *document) (*document, error) {
		if doc.Leader == nil {
			return nil, nil
		}
		for _, p := range doc.Peers {
			if p.Status == Alive {
				return nil, nil
			}
		}
		doc.Leader = nil
		return doc, nil
	})
}

// List returns every registered peer, regardless of status.
func (r *Registry) List() ([]Peer, error) {
	doc, err := r.readSnapshot()
	if err != nil {
		return nil, err
	}
	return doc.Peers, nil
}

func (r *Registry) readSnapshot() (*document, error) {
	fl := flock.New(r.lockPath)
	if err := fl.RLock(); err != nil {
		return nil, fmt.Errorf("read-locking registry: %w", err)
	}
	defer fl.Unlock()
	return r.readLocked()
}
