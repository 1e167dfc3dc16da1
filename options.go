package liveboard

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/liveboard/history"
	"github.com/jpalmerr/liveboard/internal/schedule"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title            string
	panels           []Panel
	port             int
	serve            bool
	maxConcurrency   int
	logger           *slog.Logger
	history          history.Store
	retention        time.Duration
	maintenance      string
	warmStart        bool
	subscriberBuffer int
	callbacks        []func(RefreshResult)
	onReady          []func()
	now              func() time.Time
}

// Option is a function that configures a [Board] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithPanel adds a single [Panel] to the board.
//
// Can be called multiple times to add multiple panels. At least one
// panel must be configured for [New] to succeed.
//
// Example:
//
//	b, err := liveboard.New(
//	    liveboard.WithPanel(weather),
//	    liveboard.WithPanel(transit),
//	)
func WithPanel(p Panel) Option {
	return func(cfg *boardConfig) error {
		cfg.panels = append(cfg.panels, p)
		return nil
	}
}

// WithPanels adds multiple [Panel] values to the board.
// Equivalent to calling [WithPanel] multiple times.
func WithPanels(panels ...Panel) Option {
	return func(cfg *boardConfig) error {
		cfg.panels = append(cfg.panels, panels...)
		return nil
	}
}

// WithPort sets the HTTP port for the API and event stream.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithServer enables or disables the HTTP server. It is enabled by default;
// embedders that only use [Board.GetPanel] and [Board.Subscribe] can turn
// it off.
func WithServer(enabled bool) Option {
	return func(cfg *boardConfig) error {
		cfg.serve = enabled
		return nil
	}
}

// WithMaxConcurrency limits how many panels are fetched at once during the
// initial fetch on [Board.Start]. Defaults to 10 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the board title reported by the HTTP index.
// If not specified, defaults to "Liveboard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHistory sets the store that persisting panels append to.
//
// With a store configured the board also warm-starts persisting panels from
// their latest record and prunes old records on the maintenance schedule.
// The board does not close the store.
func WithHistory(s history.Store) Option {
	return func(cfg *boardConfig) error {
		if s == nil {
			return errors.New("history store cannot be nil")
		}
		cfg.history = s
		return nil
	}
}

// WithRetention sets how long history records are kept.
// Defaults to 7 days.
func WithRetention(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("retention must be positive")
		}
		cfg.retention = d
		return nil
	}
}

// WithMaintenanceSchedule sets when history is pruned, as a cron expression
// or descriptor such as "@daily" or "30 3 * * *". Defaults to "@daily".
func WithMaintenanceSchedule(spec string) Option {
	return func(cfg *boardConfig) error {
		if err := schedule.ValidateSpec(spec); err != nil {
			return err
		}
		cfg.maintenance = spec
		return nil
	}
}

// WithWarmStart enables or disables restoring persisted payloads into the
// cache on start. Enabled by default; it only applies with [WithHistory].
func WithWarmStart(enabled bool) Option {
	return func(cfg *boardConfig) error {
		cfg.warmStart = enabled
		return nil
	}
}

// WithSubscriberBuffer sets how many undelivered events a subscriber may
// queue before it is dropped. Defaults to 100.
func WithSubscriberBuffer(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("subscriber buffer must be positive")
		}
		cfg.subscriberBuffer = n
		return nil
	}
}

// WithRefreshCallback registers a function to be called after every refresh
// attempt, whatever its outcome.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks run synchronously on the refreshing goroutine and
// must be non-blocking. Panics within callbacks are recovered and logged.
//
// Example:
//
//	b, err := liveboard.New(
//	    liveboard.WithPanel(transit),
//	    liveboard.WithRefreshCallback(func(r liveboard.RefreshResult) {
//	        if r.Outcome == liveboard.OutcomeDegraded {
//	            log.Printf("ALERT: %s has no data: %v", r.PanelName, r.Error)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithRefreshCallback(cb func(RefreshResult)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithOnReady registers a function called once [Board.Start] has finished
// the initial fetch and scheduled every panel.
// Nil functions are silently ignored.
func WithOnReady(fn func()) Option {
	return func(cfg *boardConfig) error {
		if fn == nil {
			return nil
		}
		cfg.onReady = append(cfg.onReady, fn)
		return nil
	}
}
