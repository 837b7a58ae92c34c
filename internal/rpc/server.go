package rpc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/printforge/internal/consensus"
	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/metrics"
)

// Server binds a consensus.Node to an HTTP mux: the peer RPC routes, the
// client workflow API, and /metrics (spec §6).
type Server struct {
	node   *consensus.Node
	http   *http.Server
	logger zerolog.Logger
}

// NewServer builds the mux for node and binds it to addr. Call Start to
// accept connections.
func NewServer(node *consensus.Node, addr string) *Server {
	s := &Server{node: node, logger: log.WithComponent("rpc")}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /vote", s.handleVote)
	mux.HandleFunc("POST /heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /replicate", s.handleReplicate)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /logs/{from_index}", s.handleLogsFrom)

	mux.HandleFunc("POST /api/v1/printers", s.handleCreatePrinter)
	mux.HandleFunc("GET /api/v1/printers", s.handleListPrinters)
	mux.HandleFunc("POST /api/v1/filaments", s.handleCreateFilament)
	mux.HandleFunc("GET /api/v1/filaments", s.handleListFilaments)
	mux.HandleFunc("POST /api/v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	mux.HandleFunc("PATCH /api/v1/jobs/{id}/status", s.handleUpdateJobStatus)

	mux.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start binds the listener and serves until Stop is called. It blocks, so
// callers typically run it in its own goroutine.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("rpc server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("rpc server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func parseIndexParam(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing from_index: %w", err)
	}
	return v, nil
}
