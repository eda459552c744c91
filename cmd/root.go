// Package cmd defines and implements the CLI commands for the tagrelay
// executable.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/logging"
)

var verbose bool

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tagrelay",
		Short: "Relays freshly tagged Pixiv images to Discord channels.",
		Long: `tagrelay searches Pixiv for images carrying a configured main tag plus
one of several sub-tags, filters out restricted and previously posted works,
and delivers one image per sub-tag to Discord webhook endpoints. History is
persisted between runs so the same image is never posted twice.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development logging")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// buildLogger creates the process logger, honoring --verbose over the
// per-config development toggle.
func buildLogger(development bool) (*zap.Logger, error) {
	logger, err := logging.New(development || verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// Execute is the main entry point.
func Execute() {
	// A local .env carries credentials during development; absence is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
