package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/printforge/internal/log"
	"github.com/cuemby/printforge/internal/router"
)

const shutdownGrace = 5 * time.Second

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Run the stateless client router",
}

var routerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Bind the router's HTTP surface and forward client requests to the current leader",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindAddr, _ := cmd.Flags().GetString("bind-addr")
		registryPath, _ := cmd.Flags().GetString("registry")

		rt := router.New(registryPath)
		srv := &http.Server{Addr: bindAddr, Handler: rt.Handler()}

		logger := log.WithComponent("router")
		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", bindAddr).Msg("router listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
		case err := <-errCh:
			logger.Error().Err(err).Msg("router server failed")
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	routerRunCmd.Flags().String("bind-addr", "127.0.0.1:6000", "Address the router listens on")
	routerRunCmd.Flags().String("registry", "./printforge-data/config/peers.json", "Path to the shared peer registry file")
	routerCmd.AddCommand(routerRunCmd)
}

func printStatus(host string, port int) error {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/status", host, port))
	if err != nil {
		return fmt.Errorf("querying node status: %w", err)
	}
	defer resp.Body.Close()

	fmt.Printf("node at %s:%d responded with HTTP %d\n", host, port, resp.StatusCode)
	return nil
}
