package liveboard

import (
	"errors"
	"maps"
	"time"
)

const (
	minPanelInterval = time.Second
	maxPanelInterval = time.Hour
)

// panelConfig holds configuration during [Panel] construction.
type panelConfig struct {
	interval    time.Duration
	ttl         time.Duration
	timeout     time.Duration
	persist     bool
	placeholder map[string]any
}

// PanelOption configures a [Panel] during construction via [NewPanel].
type PanelOption func(*panelConfig) error

// WithInterval sets how often the panel is refreshed.
// The interval must be between 1 second and 1 hour.
//
// Example:
//
//	liveboard.WithInterval(time.Minute)
func WithInterval(d time.Duration) PanelOption {
	return func(c *panelConfig) error {
		if d < minPanelInterval {
			return errors.New("interval must be at least 1 second")
		}
		if d > maxPanelInterval {
			return errors.New("interval must not exceed 1 hour")
		}
		c.interval = d
		return nil
	}
}

// WithTTL sets how long a fetched payload stays servable.
// The TTL must not be shorter than the interval, or readers would see gaps
// between scheduled refreshes.
func WithTTL(d time.Duration) PanelOption {
	return func(c *panelConfig) error {
		if d <= 0 {
			return errors.New("ttl must be positive")
		}
		c.ttl = d
		return nil
	}
}

// WithTimeout sets the upper bound on a single fetch.
// Default is 10 seconds.
func WithTimeout(d time.Duration) PanelOption {
	return func(c *panelConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithPersist appends every fresh payload to the history store.
func WithPersist(enabled bool) PanelOption {
	return func(c *panelConfig) error {
		c.persist = enabled
		return nil
	}
}

// WithPlaceholder sets the fields of an empty payload that viewers can still
// render. When the panel has neither fresh nor cached data it serves these
// fields plus "error" and "degraded".
//
// Example:
//
//	liveboard.WithPlaceholder(map[string]any{"temp_c": nil, "summary": ""})
func WithPlaceholder(fields map[string]any) PanelOption {
	return func(c *panelConfig) error {
		c.placeholder = maps.Clone(fields)
		return nil
	}
}
