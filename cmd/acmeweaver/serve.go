package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/acmeweaver/internal/health"
	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the challenge API with health and metrics endpoints",
	Long: `serve exposes POST /present and POST /cleanup so an external
orchestrator can drive the challenge lifecycle over HTTP, alongside
/health, /ready, and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, err := newProvider()
		if err != nil {
			return err
		}
		if err := p.Init(ctx); err != nil {
			return err
		}

		srv := health.New(cfg.HealthPort,
			health.WithLogger(logger),
			health.WithChallengeProvider(p),
		)

		srv.RegisterChecker("provider:"+p.Type(), func(ctx context.Context) error {
			err := p.Ping(ctx)
			healthy := 1.0
			if err != nil {
				healthy = 0
			}
			metrics.ProviderHealthy.WithLabelValues(p.Type()).Set(healthy)
			return err
		})

		if err := srv.Start(); err != nil {
			return fmt.Errorf("starting ops server: %w", err)
		}

		logger.Info("acmeweaver serving",
			slog.String("version", Version),
			slog.Int("port", cfg.HealthPort),
		)

		<-ctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown error", slog.String("error", err.Error()))
		}

		logger.Info("acmeweaver shutdown complete")
		return nil
	},
}
