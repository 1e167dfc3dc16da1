package liveboard

import (
	"encoding/json"
	"time"

	"github.com/jpalmerr/liveboard/internal/refresh"
)

// Outcome describes where a served payload came from.
type Outcome string

const (
	// OutcomeCached means the payload was read from an unexpired cache entry.
	OutcomeCached Outcome = "cached"

	// OutcomeFresh means the source succeeded during this refresh.
	OutcomeFresh Outcome = "fresh"

	// OutcomeStale means the source failed and the unexpired cached payload
	// was served instead.
	OutcomeStale Outcome = "stale_fallback"

	// OutcomeDegraded means the source failed with nothing cached and the
	// payload is the panel's placeholder plus "error" and "degraded" fields.
	OutcomeDegraded Outcome = "degraded"
)

func outcomeOf(o refresh.Outcome) Outcome {
	switch o {
	case refresh.Fresh:
		return OutcomeFresh
	case refresh.StaleFallback:
		return OutcomeStale
	default:
		return OutcomeDegraded
	}
}

// resultOutcome is outcomeOf, except that a superseded refresh reports the
// cached payload written by the newer refresh.
func resultOutcome(res refresh.Result) Outcome {
	if res.Superseded && !res.UpdatedAt.IsZero() {
		return OutcomeCached
	}
	return outcomeOf(res.Outcome)
}

// Snapshot is one read of a panel.
//
// Payload is always a valid JSON document and is never nil. It is a copy,
// so callers may keep or modify it.
type Snapshot struct {
	Name    string
	Outcome Outcome
	Payload json.RawMessage

	// UpdatedAt is when the payload was fetched. Zero for degraded payloads.
	UpdatedAt time.Time

	// ExpiresAt is when a cached payload stops being served. Zero unless
	// the payload came from the cache.
	ExpiresAt time.Time

	// Err is the failure behind a stale or degraded payload.
	Err error
}

// RefreshResult reports one refresh attempt to callbacks registered with
// [WithRefreshCallback].
type RefreshResult struct {
	PanelName  string
	Outcome    Outcome
	Payload    json.RawMessage
	UpdatedAt  time.Time
	Latency    time.Duration
	Generation uint64

	// Notified reports whether viewers were told the panel changed.
	Notified bool

	Error error
}

func snapshotOf(res refresh.Result) Snapshot {
	return Snapshot{
		Name:      res.Panel,
		Outcome:   resultOutcome(res),
		Payload:   copyBytes(res.Payload),
		UpdatedAt: res.UpdatedAt,
		Err:       res.Err,
	}
}

// copyBytes returns a copy of b, or nil if b is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
