package history

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local [Store]. Records are lost on restart.
type Memory struct {
	mu      sync.Mutex
	records []Record
	seq     int64
	closed  bool
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Save(_ context.Context, panel string, payload json.RawMessage, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if at.IsZero() {
		at = m.now()
	}
	m.seq++
	m.records = append(m.records, Record{
		ID:        m.seq,
		Panel:     panel,
		FetchedAt: at,
		Payload:   bytes.Clone(payload),
	})
	return m.seq, nil
}

func (m *Memory) LoadLatest(_ context.Context, panel string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Record{}, false, ErrClosed
	}
	var (
		latest Record
		found  bool
	)
	for _, r := range m.records {
		if r.Panel != panel {
			continue
		}
		if !found || !r.FetchedAt.Before(latest.FetchedAt) {
			latest, found = r, true
		}
	}
	return latest, found, nil
}

func (m *Memory) LoadHistory(_ context.Context, panel string, window time.Duration, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	since := m.now().Add(-window)

	out := make([]Record, 0)
	for _, r := range m.records {
		if r.Panel == panel && !r.FetchedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FetchedAt.Equal(out[j].FetchedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	cutoff := m.now().Add(-olderThan)
	kept := m.records[:0]
	var removed int64
	for _, r := range m.records {
		if r.FetchedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
