package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nadzzz/nova/docs"
	"github.com/nadzzz/nova/internal/config"
	"github.com/nadzzz/nova/internal/health"
	"github.com/nadzzz/nova/internal/transport"
	httptransport "github.com/nadzzz/nova/internal/transport/http"
)

func newServeCmd(cfg *config.Config, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Negotiate the backend and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			slog.Info("nova starting", "version", version)

			a := newApp(cfg, flags, stdin, os.Stderr)
			if err := a.negotiate(ctx, flags); err != nil {
				return err
			}

			var transports []transport.Transport
			if cfg.Transports.HTTP.Enabled {
				admin := backendAdmin{Session: a.session, Negotiator: a.negotiator}
				transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port, a.classifier, admin))
			}
			if len(transports) == 0 {
				return fmt.Errorf("no transports enabled, enable at least one in config")
			}

			healthServer := health.New(cfg.Server.HealthPort, cfg.Server.GRPCPort, a.session, cfg.Backend.ProbeInterval)
			go func() {
				if err := healthServer.ListenAndServe(ctx); err != nil {
					slog.Error("health server failed", "error", err)
				}
			}()

			var wg sync.WaitGroup
			for _, t := range transports {
				wg.Add(1)
				go func(t transport.Transport) {
					defer wg.Done()
					slog.Info("starting transport", "name", t.Name())
					if err := t.Listen(ctx, a.dispatcher.Handle); err != nil {
						slog.Error("transport failed", "name", t.Name(), "error", err)
					}
				}(t)
			}

			healthServer.SetReady(true)
			status := a.session.Status()
			slog.Info("nova ready",
				"transports", len(transports),
				"health_port", cfg.Server.HealthPort,
				"backend", status.URL,
				"online", status.Online)

			<-ctx.Done()
			slog.Info("shutdown signal received, draining...")
			healthServer.SetReady(false)

			for _, t := range transports {
				if err := t.Close(); err != nil {
					slog.Error("transport close error", "name", t.Name(), "error", err)
				}
			}

			wg.Wait()
			slog.Info("nova stopped")
			return nil
		},
	}
}
