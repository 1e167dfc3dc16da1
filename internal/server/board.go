package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jpalmerr/liveboard/internal/hub"
)

var (
	// ErrNotFound is returned by a [Board] for panels it does not know.
	ErrNotFound = errors.New("panel not found")

	// ErrUnavailable is returned by a [Board] when a feature is not configured.
	ErrUnavailable = errors.New("not available")
)

// PanelInfo summarizes one configured panel.
type PanelInfo struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	TTL       string     `json:"ttl"`
	Persist   bool       `json:"persist"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// PanelView is one panel's current payload.
type PanelView struct {
	Name      string
	Outcome   string
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// HistoryEntry is one saved payload.
type HistoryEntry struct {
	ID        int64           `json:"id"`
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Board is the read surface the server exposes.
type Board interface {
	Panels() []PanelInfo
	Panel(ctx context.Context, name string) (PanelView, error)
	History(ctx context.Context, name string, window time.Duration, limit int) ([]HistoryEntry, error)

	// Subscribe returns a stream of panel-updated events and a function that
	// ends the subscription.
	Subscribe() (<-chan hub.Event, func())
}
