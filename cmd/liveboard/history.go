package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/liveboard/config"
	"github.com/jpalmerr/liveboard/history"
)

var errHistoryDisabled = errors.New("history is disabled (storage.driver is none)")

// historyCmd groups history maintenance subcommands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage stored panel history",
}

// pruneCmd deletes history older than the configured retention.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than the retention window",
	Long: `Delete stored panel payloads older than storage.retention.

A running server prunes on its maintenance schedule; this command does
the same once, for use from cron or after lowering the retention.

Example:
  liveboard history prune -c config.yaml
  liveboard history prune -c config.yaml --older-than 24h`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	pruneCmd.Flags().Duration("older-than", 0, "override storage.retention")
	_ = pruneCmd.MarkFlagRequired("config")
}

func runPrune(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if olderThan <= 0 {
		olderThan = cfg.Storage.Retention.Duration()
	}

	store, err := history.Open(config.HistoryConfig(cfg), newLogger(cfg))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()

	n, err := store.Prune(context.Background(), olderThan)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	fmt.Printf("Pruned %d record(s) older than %s\n", n, olderThan)
	return nil
}
