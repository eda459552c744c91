package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/app"
	"github.com/pixelfall/tagrelay/internal/config"
	"github.com/pixelfall/tagrelay/internal/server"
)

// newServeCmd creates the 'serve' subcommand: batches on a fixed interval
// plus an HTTP listener for health, metrics, and run status.
func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs relay batches on an interval with an admin HTTP listener",
		Long: `Starts a daemon that executes a relay batch immediately, then again on
every configured interval. An HTTP listener exposes /healthz, /readyz,
/metrics (Prometheus), and /v1/status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to the bot configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServeCommand(parent context.Context, cfgPath string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	logger, err := buildLogger(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	instance, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("assemble pipeline: %w", err)
	}
	defer instance.Close()

	tracker := server.NewStatusTracker()
	apiServer := server.NewServer(tracker, instance.Registry, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Serve.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Serve.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	runLoop(ctx, instance, tracker, cfg.Serve.Interval, logger)

	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// runLoop executes one batch immediately, then one per tick until ctx ends.
// Batch failures are recorded in the tracker and logged; the loop keeps
// going, the next tick gets a fresh chance.
func runLoop(ctx context.Context, instance *app.App, tracker *server.StatusTracker, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		executeBatch(ctx, instance, tracker, logger)
		tracker.NextRun(time.Now().UTC().Add(interval))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func executeBatch(ctx context.Context, instance *app.App, tracker *server.StatusTracker, logger *zap.Logger) {
	start := time.Now().UTC()
	tracker.RunStarted(uuid.NewString(), start)

	// Tokens expire between ticks; authenticate fresh for every batch.
	err := instance.Client.Login(ctx)
	if err == nil {
		err = instance.Orchestrator.Run(ctx)
	}
	tracker.RunFinished(time.Now().UTC(), err)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("batch failed", zap.Error(err))
		return
	}
	if err == nil {
		logger.Info("batch complete", zap.Duration("took", time.Since(start)))
	}
}
