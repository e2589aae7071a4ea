// Package main implements the profilectl CLI for inspecting and
// exercising recorded intake conversations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/profiled/internal/config"
	"github.com/fyrsmithlabs/profiled/internal/convlog"
	"github.com/fyrsmithlabs/profiled/internal/logging"
)

var (
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "profilectl",
	Short: "CLI for profiled conversation logs",
	Long: `profilectl is a command-line interface for the profiled conversation
store. It lists recorded sessions, exports them in several formats, and
can feed single turns through the collection pipeline.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/profiled/config.yaml)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(turnCmd)
}

// newStack loads config and opens the logger and conversation store
// shared by every command.
func newStack() (*config.Config, *logging.Logger, *convlog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := convlog.NewLogger(cfg.Storage.Dir, logger.Named("convlog"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	return cfg, logger, store, nil
}
