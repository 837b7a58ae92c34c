package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/metrics"
	"github.com/cuemby/printforge/internal/registry"
)

// RequestTimeout is the hard end-to-end ceiling on a proxied request
// (spec §4.4).
const RequestTimeout = 5 * time.Second

// Router is the stateless client front-end.
type Router struct {
	reg    *registry.Registry
	client *http.Client
	logger zerolog.Logger
}

// New returns a Router backed by the shared Peer Registry at registryPath.
func New(registryPath string) *Router {
	return &Router{
		reg:    registry.New(registryPath),
		client: &http.Client{Timeout: RequestTimeout},
		logger: log.WithComponent("router"),
	}
}

// Handler returns the router's HTTP mux.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/proxy/", rt.handleProxy)
	mux.HandleFunc("GET /NodeStatus", rt.handleNodeStatus)
	mux.HandleFunc("GET /leader", rt.handleLeader)
	mux.HandleFunc("GET /peers", rt.handlePeers)
	return mux
}

func (rt *Router) resolveLeader() (*registry.LeaderPointer, error) {
	leader, err := rt.reg.GetLeader()
	if err != nil {
		return nil, fmt.Errorf("reading leader pointer: %w", err)
	}
	if leader == nil {
		return nil, ErrNoLeader
	}
	return leader, nil
}

func (rt *Router) writeRouterError(w http.ResponseWriter, route string, err error) {
	metrics.ClientRequestsTotal.WithLabelValues(route, "routing_error").Inc()
	rt.logger.Warn().Err(err).Str("route", route).Msg("routing failure")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": humanMessage(err)})
}

// handleProxy forwards method, headers and body verbatim to whichever node
// the registry currently names as leader (spec §4.4). The leader is
// re-resolved on every call; nothing about a prior request is cached.
func (rt *Router) handleProxy(w http.ResponseWriter, r *http.Request) {
	leader, err := rt.resolveLeader()
	if err != nil {
		rt.writeRouterError(w, "proxy", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	subpath := strings.TrimPrefix(r.URL.Path, "/proxy")
	target := fmt.Sprintf("http://%s:%d%s", leader.Host, leader.Port, subpath)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	proxyReq, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		rt.writeRouterError(w, "proxy", fmt.Errorf("building proxied request: %w", err))
		return
	}
	proxyReq.Header = r.Header.Clone()

	resp, err := rt.client.Do(proxyReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			rt.writeRouterError(w, "proxy", ErrLeaderTimeout)
		} else {
			rt.writeRouterError(w, "proxy", ErrLeaderUnreachable)
		}
		return
	}
	defer resp.Body.Close()

	metrics.ClientRequestsTotal.WithLabelValues("proxy", "forwarded").Inc()
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

type nodeStatusResponse struct {
	Success bool                    `json:"success"`
	Leader  *registry.LeaderPointer `json:"leader"`
	Peers   []registry.Peer         `json:"peers"`
}

func (rt *Router) handleNodeStatus(w http.ResponseWriter, r *http.Request) {
	leader, err := rt.reg.GetLeader()
	if err != nil {
		rt.writeRouterError(w, "nodestatus", err)
		return
	}
	peers, err := rt.reg.List()
	if err != nil {
		rt.writeRouterError(w, "nodestatus", err)
		return
	}
	writeJSON(w, http.StatusOK, nodeStatusResponse{Success: leader != nil, Leader: leader, Peers: peers})
}

func (rt *Router) handleLeader(w http.ResponseWriter, r *http.Request) {
	leader, err := rt.reg.GetLeader()
	if err != nil {
		rt.writeRouterError(w, "leader", err)
		return
	}
	writeJSON(w, http.StatusOK, leader)
}

func (rt *Router) handlePeers(w http.ResponseWriter, r *http.Request) {
	peers, err := rt.reg.List()
	if err != nil {
		rt.writeRouterError(w, "peers", err)
		return
	}
	writeJSON(w, http.StatusOK, peers)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
