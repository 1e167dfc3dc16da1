package liveboard

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/jpalmerr/liveboard/internal/refresh"
	"github.com/jpalmerr/liveboard/internal/schedule"
)

const (
	defaultPanelInterval = 5 * time.Minute
	defaultPanelTimeout  = 10 * time.Second
)

// Panel describes one independently refreshed piece of dashboard data.
//
// Panel is immutable after creation via [NewPanel]. All fields are private
// with getter methods that return copies of mutable data (maps), so a panel
// cannot be modified after construction.
//
// Panels are configured using the functional options pattern with
// [PanelOption] functions such as [WithInterval], [WithTTL], [WithTimeout],
// [WithPersist], and [WithPlaceholder].
type Panel struct {
	name        string
	source      Source
	interval    time.Duration
	ttl         time.Duration
	timeout     time.Duration
	persist     bool
	placeholder map[string]any
}

// Name returns the panel's unique name.
// The name keys the cache, the schedule and every notification.
func (p Panel) Name() string {
	return p.name
}

// Source returns the adapter that fetches the panel's payload.
func (p Panel) Source() Source {
	return p.source
}

// Interval returns how often the panel is refreshed.
// Defaults to 5 minutes if not set via [WithInterval].
func (p Panel) Interval() time.Duration {
	return p.interval
}

// TTL returns how long a fetched payload stays servable.
// Defaults to one and a half intervals.
func (p Panel) TTL() time.Duration {
	return p.ttl
}

// Timeout returns the upper bound on a single fetch.
// Defaults to 10 seconds if not set via [WithTimeout].
func (p Panel) Timeout() time.Duration {
	return p.timeout
}

// Persist reports whether fresh payloads are appended to history.
func (p Panel) Persist() bool {
	return p.persist
}

// Placeholder returns a copy of the fields served, together with an error
// description, when the panel has nothing better to show.
func (p Panel) Placeholder() map[string]any {
	if p.placeholder == nil {
		return nil
	}
	return maps.Clone(p.placeholder)
}

// descriptor converts the panel to what the refresher needs.
func (p Panel) descriptor() refresh.Descriptor {
	return refresh.Descriptor{
		Name:        p.name,
		TTL:         p.ttl,
		Timeout:     p.timeout,
		Persist:     p.persist,
		Placeholder: p.placeholder,
		Source:      p.source,
	}
}

// NewPanel creates a [Panel] with the given name, source, and options.
//
// The name must be unique within a board and must not be "maintenance",
// which is reserved for the history pruning job.
//
// Options are applied in order using the functional options pattern.
// When no TTL is given it defaults to 1.5 times the interval.
//
// Returns an error if the name is empty or reserved, the source is nil, an
// option fails, or the TTL is shorter than the interval.
//
// Example:
//
//	src, _ := liveboard.NewHTTPSource("https://transit.example.com/departures")
//	p, err := liveboard.NewPanel("transit", src,
//	    liveboard.WithInterval(time.Minute),
//	    liveboard.WithTTL(90*time.Second),
//	    liveboard.WithPlaceholder(map[string]any{"departures": []any{}}),
//	)
func NewPanel(name string, src Source, opts ...PanelOption) (Panel, error) {
	if name == "" {
		return Panel{}, errors.New("panel name cannot be empty")
	}
	if name == schedule.MaintenanceID {
		return Panel{}, fmt.Errorf("panel name %q is reserved", name)
	}
	if src == nil {
		return Panel{}, errors.New("panel source cannot be nil")
	}

	cfg := &panelConfig{
		interval: defaultPanelInterval,
		timeout:  defaultPanelTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Panel{}, err
		}
	}

	ttl := cfg.ttl
	if ttl == 0 {
		ttl = cfg.interval * 3 / 2
	}
	if ttl < cfg.interval {
		return Panel{}, fmt.Errorf("ttl %s must not be shorter than interval %s", ttl, cfg.interval)
	}

	return Panel{
		name:        name,
		source:      src,
		interval:    cfg.interval,
		ttl:         ttl,
		timeout:     cfg.timeout,
		persist:     cfg.persist,
		placeholder: cfg.placeholder,
	}, nil
}
