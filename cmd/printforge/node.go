package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/printforge/internal/config"
	"github.com/cuemby/printforge/internal/consensus"
	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/rpc"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run or inspect a single cluster node",
}

var nodeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a node: loads or synthesizes its config, joins the cluster, and serves the RPC surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		dataDir, _ := cmd.Flags().GetString("data-dir")

		paths := config.NewPaths(dataDir, fmt.Sprintf("node_%d", port), port)
		cfg, err := config.Load(paths, port)
		if err != nil {
			return fmt.Errorf("loading node config: %w", err)
		}
		paths = config.NewPaths(dataDir, cfg.NodeID, cfg.Port)

		node, err := consensus.NewNode(consensus.NodeConfig{
			NodeID:       cfg.NodeID,
			Host:         cfg.Host,
			Port:         cfg.Port,
			SnapshotPath: paths.SnapshotPath,
			LogPath:      paths.LogPath,
			RegistryPath: paths.RegistryPath,
		})
		if err != nil {
			return fmt.Errorf("constructing node: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := node.Start(ctx); err != nil {
			return fmt.Errorf("starting node: %w", err)
		}

		server := rpc.NewServer(node, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- err
			}
		}()

		logger := log.WithNodeID(cfg.NodeID)
		logger.Info().Int("port", cfg.Port).Msg("printforge node running")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
		case err := <-errCh:
			logger.Error().Err(err).Msg("rpc server failed")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		_ = server.Stop(shutdownCtx)
		node.Stop()
		return nil
	},
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running node's /status endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		return printStatus(host, port)
	},
}

func init() {
	nodeRunCmd.Flags().Int("port", 5001, "Port this node binds its RPC surface on")
	nodeRunCmd.Flags().String("data-dir", "./printforge-data", "Directory for durable state and the shared peer registry")

	nodeStatusCmd.Flags().String("host", "127.0.0.1", "Host of the node to query")
	nodeStatusCmd.Flags().Int("port", 5001, "Port of the node to query")

	nodeCmd.AddCommand(nodeRunCmd)
	nodeCmd.AddCommand(nodeStatusCmd)
}
