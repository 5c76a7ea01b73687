package cmd

import (
	"context"
	"fmt"

	"github.com/Sternrassler/scm-gateway/internal/server"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ops server (/health, /ready, /metrics, /throttle)",
		Long: `Start the ops server with graceful shutdown support.

/ready pings Redis when the response cache is configured. /throttle shows
the adaptive throttle state of every adapter. Ctrl+C (SIGINT) or SIGTERM
shuts the server down within server.shutdown_timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			if err := a.reg.Ping(cmd.Context()); err != nil {
				a.logger.Warn().Err(err).Msg("Redis not reachable, serving unready")
			}

			srv := server.New(addr, a.reg, a.logger)

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start()
			}()

			select {
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("ops server: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			a.logger.Info().Msg("Ops server stopped")
			return <-errChan
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	return cmd
}
