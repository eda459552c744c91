package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/app"
	"github.com/pixelfall/tagrelay/internal/config"
)

// newRunCmd creates the 'run' subcommand: one relay batch per config file,
// then exit. Several bot personalities can share a binary by passing several
// config files.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <config.json> [config.json...]",
		Short: "Runs one relay batch per configuration file",
		Long: `Executes a single search-and-post batch for each configuration file, in
order, and exits. Intended for cron or systemd timers; use 'serve' for a
long-running daemon.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var failed []string
	for _, path := range args {
		if err := runBatch(ctx, path); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed = append(failed, path)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d batches failed: %v", len(failed), len(args), failed)
	}
	return nil
}

func runBatch(ctx context.Context, cfgPath string) error {
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
	logger = logger.With(zap.String("config", cfgPath))

	instance, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("assemble pipeline failed", zap.Error(err))
		return err
	}
	defer instance.Close()

	if err := instance.Client.Login(ctx); err != nil {
		logger.Error("login failed", zap.Error(err))
		return err
	}
	if err := instance.Orchestrator.Run(ctx); err != nil {
		logger.Error("batch failed", zap.Error(err))
		return err
	}
	logger.Info("batch complete")
	return nil
}
