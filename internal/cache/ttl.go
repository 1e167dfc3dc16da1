package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with the time it was written and the time it stops
// being visible.
type Entry[V any] struct {
	Value     V
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// expired reports whether the entry is past its expiry at now.
// An entry is already expired at the exact ExpiresAt instant.
func (e Entry[V]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source used for writes and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// TTL is a key/value cache where every entry expires after its own TTL.
//
// TTL is safe for concurrent use. A single mutex guards the map, so a read
// and its lazy eviction are atomic with respect to writers.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]Entry[V]
	now     func() time.Time
}

// New creates an empty cache.
func New[V any](opts ...Option) *TTL[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[V]{
		entries: make(map[string]Entry[V]),
		now:     o.now,
	}
}

// Get returns the value for key if present and unexpired.
// An expired entry is deleted and reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	e, ok := c.Entry(key)
	return e.Value, ok
}

// Entry returns the value and its timestamps for key if present and unexpired.
// An expired entry is deleted and reported as absent.
func (c *TTL[V]) Entry(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return Entry[V]{}, false
	}
	return e, true
}

// Set stores value under key, replacing any existing entry unconditionally.
// The entry expires ttl after now.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry[V]{
		Value:     value,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Restore stores value with explicit timestamps. It is used to seed the cache
// from persisted history, where the original write time must be preserved.
// Restoring an entry that is already expired is a no-op.
func (c *TTL[V]) Restore(key string, value V, updatedAt, expiresAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry[V]{Value: value, UpdatedAt: updatedAt, ExpiresAt: expiresAt}
	if e.expired(c.now()) {
		return false
	}
	c.entries[key] = e
	return true
}

// UpdatedAt returns the write time of the entry under key.
// It does not check expiry and never evicts.
func (c *TTL[V]) UpdatedAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.UpdatedAt, true
}

// Delete removes key if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired entries that
// have not been read since they expired.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
