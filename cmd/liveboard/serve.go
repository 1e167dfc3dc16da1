package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/liveboard"
	"github.com/jpalmerr/liveboard/config"
	"github.com/jpalmerr/liveboard/history"
	"github.com/jpalmerr/liveboard/internal/logging"
	"github.com/jpalmerr/liveboard/internal/relay"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates the CLI logger described by the config's log section.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// serveCmd starts the liveboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the board server",
	Long: `Start the liveboard server.

The server will:
  - Load configuration from the specified YAML file
  - Open the history store, if one is configured
  - Refresh every panel on its own interval
  - Serve the panel API and SSE stream on the configured port
  - Relay panel updates to NATS, if relay.nats_url is set
  - Apply panel changes when the config file is edited

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  liveboard serve -c config.yaml
  liveboard serve --config /etc/liveboard/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("no-watch", false, "do not reload panels when the config file changes")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	noWatch, _ := cmd.Flags().GetBool("no-watch")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	logger.Info("config loaded",
		"panels", len(cfg.Panels),
		"storage", cfg.Storage.Driver,
	)

	panels, err := config.BuildPanels(cfg)
	if err != nil {
		return fmt.Errorf("failed to build panels: %w", err)
	}

	store, err := history.Open(config.HistoryConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		}()
	}

	opts := boardOptions(cfg, panels, store, logger)
	opts = append(opts, liveboard.WithOnReady(func() {
		notifySystemd(logger, daemon.SdNotifyReady)
	}))

	board, err := liveboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Relay.NATSURL != "" {
		nc, err := relay.Connect(relay.Config{URL: cfg.Relay.NATSURL}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect relay: %w", err)
		}
		defer nc.Close()

		r := relay.New(nc, cfg.Relay.SubjectPrefix, logger)
		go func() {
			if err := r.Follow(ctx, board.Subscribe); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay stopped", "error", err)
			}
		}()
		logger.Info("relay enabled", "url", cfg.Relay.NATSURL, "prefix", cfg.Relay.SubjectPrefix)
	}

	if !noWatch {
		go func() {
			err := config.Watch(ctx, configFile, logger, func(next *config.Config) {
				applyConfig(board, next, logger)
			})
			if err != nil {
				logger.Warn("config watch disabled", "error", err)
			}
		}()
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"refresh_interval", cfg.RefreshInterval.Duration().String(),
	)

	// start board - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	// wait for board to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		notifySystemd(logger, daemon.SdNotifyStopping)

		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// boardOptions maps the parsed config onto SDK options.
func boardOptions(cfg *config.Config, panels []liveboard.Panel, store history.Store, logger *slog.Logger) []liveboard.Option {
	opts := []liveboard.Option{
		liveboard.WithPanels(panels...),
		liveboard.WithPort(cfg.Port),
		liveboard.WithMaxConcurrency(cfg.MaxConcurrency),
		liveboard.WithLogger(logger),
		liveboard.WithTitle(cfg.Title),
	}
	if store != nil {
		opts = append(opts,
			liveboard.WithHistory(store),
			liveboard.WithRetention(cfg.Storage.Retention.Duration()),
			liveboard.WithMaintenanceSchedule(cfg.Maintenance.Schedule),
		)
	}
	return opts
}

// applyConfig swaps in the panels of a reloaded config. Settings outside
// the panel list take effect on the next restart.
func applyConfig(board *liveboard.Board, cfg *config.Config, logger *slog.Logger) {
	panels, err := config.BuildPanels(cfg)
	if err != nil {
		logger.Warn("config reload rejected, keeping current panels", "error", err)
		return
	}
	if err := board.Reconfigure(panels...); err != nil {
		logger.Warn("config reload rejected, keeping current panels", "error", err)
	}
}

// notifySystemd reports service state when running under systemd.
// Outside systemd (no NOTIFY_SOCKET) it is a no-op.
func notifySystemd(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		logger.Debug("systemd notified", "state", state)
	}
}
