package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/stepgraph/internal/cli"
	httpAdapter "github.com/aretw0/stepgraph/pkg/adapters/http"
	"github.com/aretw0/stepgraph/pkg/observability"
	"github.com/aretw0/stepgraph/pkg/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP editing server",
	Long: `Starts the JSON API: stored flows, hosted editing sessions with live
canvas events over SSE or a WebSocket, the analytics report and Prometheus
metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		sessionsPath, _ := cmd.Flags().GetString("sessions")

		svc, err := setup(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()
		cfg := svc.Config
		if addr == "" {
			addr = cfg.HTTP.Addr
		}

		sessionOpts := []session.Option{session.WithEditorOptions(svc.EditorOptions()...)}
		if svc.Locker != nil {
			sessionOpts = append(sessionOpts, session.WithLocker(svc.Locker))
		}
		if cfg.Session.LockTTL > 0 {
			sessionOpts = append(sessionOpts, session.WithLockTTL(cfg.Session.LockTTL))
		}

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(svc.Logger),
			httpAdapter.WithMetrics(observability.NewMetrics("stepgraph")),
			httpAdapter.WithSessionOptions(sessionOpts...),
		}
		src, err := loadSessions(sessionsPath)
		if err != nil {
			return err
		}
		if src != nil {
			opts = append(opts, httpAdapter.WithReports(src))
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		api, err := httpAdapter.NewServer(sigCtx, svc.Store, opts...)
		if err != nil {
			return fmt.Errorf("failed to build server: %w", err)
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			svc.Logger.Info("Starting stepgraph server", "addr", addr, "store", cfg.Store.Kind, "path", cfg.Store.Path)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			svc.Logger.Info("Start shutdown", "signal", fmt.Sprint(sigCtx.Signal()))

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if open := len(api.Sessions().List()); open > 0 {
				svc.Logger.Warn("Discarding open editing sessions", "count", open)
			}

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				svc.Logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("could not stop server: %w", err)
				}
			}
			svc.Logger.Info("Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default from http.addr)")
	serveCmd.Flags().String("sessions", "", "YAML file of session records served by /api/report")
}
