// Package metrics exposes Prometheus metrics for the consensus core, the
// node RPC surface, and the client router.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RaftTerm is the node's current term.
	RaftTerm = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "printforge_raft_term",
		Help: "Current consensus term observed by this node",
	})

	// RaftIsLeader is 1 if this node believes it is the leader, else 0.
	RaftIsLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "printforge_raft_is_leader",
		Help: "Whether this node is currently the leader (1) or not (0)",
	})

	// ElectionsTotal counts elections started by this node.
	ElectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "printforge_election_total",
		Help: "Total number of elections started by this node",
	})

	// ReplicateSuccessTotal counts replication rounds that reached quorum.
	ReplicateSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "printforge_replicate_success_total",
		Help: "Total number of replicated commands that reached quorum",
	})

	// ReplicateFailureTotal counts replication rounds that failed to reach quorum.
	ReplicateFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "printforge_replicate_failure_total",
		Help: "Total number of replicated commands that failed to reach quorum",
	})

	// PeersAlive is the number of peers currently believed alive (excluding self).
	PeersAlive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "printforge_peers_alive",
		Help: "Number of peers currently marked alive in the registry",
	})

	// ClientRequestsTotal counts client/router requests by route and outcome.
	ClientRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "printforge_client_requests_total",
		Help: "Total client API requests by route and status",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(
		RaftTerm,
		RaftIsLeader,
		ElectionsTotal,
		ReplicateSuccessTotal,
		ReplicateFailureTotal,
		PeersAlive,
		ClientRequestsTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
