package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultLimit caps LoadHistory results when the caller passes no limit.
const DefaultLimit = 100

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Record is one saved payload.
type Record struct {
	ID        int64           `json:"id"`
	Panel     string          `json:"panel"`
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Store is the persistence API used by the board.
type Store interface {
	// Save appends a record and returns its id.
	Save(ctx context.Context, panel string, payload json.RawMessage, at time.Time) (int64, error)

	// LoadLatest returns the newest record for panel; ok is false when none exists.
	LoadLatest(ctx context.Context, panel string) (rec Record, ok bool, err error)

	// LoadHistory returns up to limit records for panel fetched within window
	// of now, newest first.
	LoadHistory(ctx context.Context, panel string, window time.Duration, limit int) ([]Record, error)

	// Prune deletes records fetched more than olderThan ago and returns how many were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}

// Config selects and configures a store.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
// It returns (nil, nil) if history is disabled.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown history driver: %s", driver)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
