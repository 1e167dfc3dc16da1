package refresh

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable indicates the source failed, panicked or timed out.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSerialization indicates the source payload could not be encoded as JSON.
	ErrSerialization = errors.New("payload serialization failed")
)

// Outcome classifies how a refresh produced its payload.
type Outcome int

const (
	// Fresh means the source succeeded during this refresh.
	Fresh Outcome = iota + 1

	// StaleFallback means the source failed and the unexpired cached value was served.
	StaleFallback

	// Degraded means the source failed with nothing cached; the payload is a placeholder.
	Degraded
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case StaleFallback:
		return "stale_fallback"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single [Refresher.Refresh] call.
type Result struct {
	// Panel is the refreshed panel's name.
	Panel string

	// Outcome classifies the payload.
	Outcome Outcome

	// Payload is the JSON document to serve. It is never nil.
	Payload json.RawMessage

	// UpdatedAt is when Payload was written to the cache.
	// Zero for degraded and superseded results.
	UpdatedAt time.Time

	// Generation is the per-panel sequence number assigned to this refresh.
	Generation uint64

	// Written reports whether this refresh wrote the cache.
	Written bool

	// Superseded reports that the source succeeded but a newer refresh of the
	// same panel had already written, so this payload was discarded.
	Superseded bool

	// Latency is how long the source call took.
	Latency time.Duration

	// Err is the source or serialization failure behind a fallback outcome.
	Err error
}
