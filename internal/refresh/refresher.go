package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/liveboard/internal/cache"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultPersistTimeout = 5 * time.Second
)

// Source produces a panel's payload.
type Source interface {
	FetchFresh(ctx context.Context) (any, error)
}

// Saver records successful payloads to history.
type Saver interface {
	Save(ctx context.Context, panel string, payload json.RawMessage, at time.Time) (int64, error)
}

// Descriptor is everything the refresher needs to know about one panel.
type Descriptor struct {
	Name    string
	TTL     time.Duration
	Timeout time.Duration
	Persist bool

	// Placeholder holds the fields of an empty but schema-valid payload,
	// used to build the degraded response.
	Placeholder map[string]any

	Source Source
}

// Option configures a [Refresher].
type Option func(*Refresher)

// WithClock sets the time source used for cache and history timestamps.
// It should be the same clock the cache was built with.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSaver enables best-effort history writes for panels that persist.
func WithSaver(s Saver) Option {
	return func(r *Refresher) {
		r.saver = s
	}
}

// WithPersistTimeout bounds each history save.
func WithPersistTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.persistTimeout = d
		}
	}
}

// Refresher runs refreshes against a shared cache.
//
// Refresher is safe for concurrent use. Refreshes of different panels never
// contend; refreshes of the same panel only share the generation counter.
type Refresher struct {
	cache          *cache.TTL[json.RawMessage]
	saver          Saver
	logger         *slog.Logger
	now            func() time.Time
	persistTimeout time.Duration

	mu   sync.Mutex
	gens map[string]*generation
}

// generation orders cache writes for one panel.
type generation struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// New creates a [Refresher] writing to c.
func New(c *cache.TTL[json.RawMessage], logger *slog.Logger, opts ...Option) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		cache:          c,
		logger:         logger,
		now:            time.Now,
		persistTimeout: defaultPersistTimeout,
		gens:           make(map[string]*generation),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh fetches d's payload and classifies the result. It never panics and
// always returns a usable payload.
func (r *Refresher) Refresh(ctx context.Context, d Descriptor) Result {
	gen := r.generation(d.Name)
	res := Result{Panel: d.Name, Generation: gen.next()}

	start := time.Now()
	value, err := r.fetch(ctx, d)
	res.Latency = time.Since(start)

	var raw json.RawMessage
	if err == nil {
		raw, err = encode(value)
	}
	if err != nil {
		return r.fallback(d, res, err)
	}

	res.Outcome = Fresh
	res.Payload = raw
	res.UpdatedAt, res.Written = r.write(d, gen, res.Generation, raw)
	if !res.Written {
		res.Superseded = true
		r.logger.Debug("discarding superseded refresh",
			"panel", d.Name,
			"generation", res.Generation,
		)
		return res
	}

	r.logger.Debug("panel refreshed",
		"panel", d.Name,
		"generation", res.Generation,
		"latency_ms", res.Latency.Milliseconds(),
	)

	if d.Persist && r.saver != nil {
		r.persist(ctx, d.Name, raw, res.UpdatedAt)
	}
	return res
}

// Forget drops the generation state for a panel that is no longer configured.
func (r *Refresher) Forget(name string) {
	r.mu.Lock()
	delete(r.gens, name)
	r.mu.Unlock()
}

func (r *Refresher) generation(name string) *generation {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.gens[name]
	if !ok {
		g = &generation{}
		r.gens[name] = g
	}
	return g
}

func (g *generation) next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return g.issued
}

// write stores raw unless a later generation already wrote.
// The check and the cache write happen under the panel's generation lock.
func (r *Refresher) write(d Descriptor, g *generation, gen uint64, raw json.RawMessage) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen <= g.applied {
		return time.Time{}, false
	}
	g.applied = gen
	at := r.now()
	r.cache.Set(d.Name, raw, d.TTL)
	return at, true
}

func (r *Refresher) fallback(d Descriptor, res Result, err error) Result {
	res.Err = err

	if e, ok := r.cache.Entry(d.Name); ok {
		res.Outcome = StaleFallback
		res.Payload = e.Value
		res.UpdatedAt = e.UpdatedAt
		r.logger.Warn("refresh failed, serving cached panel",
			"panel", d.Name,
			"error", err,
			"updated_at", e.UpdatedAt,
			"expires_at", e.ExpiresAt,
		)
		return res
	}

	res.Outcome = Degraded
	res.Payload = degradedPayload(d.Placeholder, err)
	r.logger.Warn("refresh failed, serving degraded panel",
		"panel", d.Name,
		"error", err,
	)
	return res
}

func (r *Refresher) persist(ctx context.Context, name string, raw json.RawMessage, at time.Time) {
	// the save outlives a cancelled read request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
	defer cancel()

	id, err := r.saver.Save(ctx, name, raw, at)
	if err != nil {
		r.logger.Warn("history save failed", "panel", name, "error", err)
		return
	}
	r.logger.Debug("history saved", "panel", name, "id", id)
}

type fetched struct {
	value any
	err   error
}

// fetch calls the source with a deadline. If the source ignores its context,
// fetch stops waiting at the deadline and leaves the call to finish alone.
func (r *Refresher) fetch(ctx context.Context, d Descriptor) (any, error) {
	if d.Source == nil {
		return nil, fmt.Errorf("%w: panel %q has no source", ErrSourceUnavailable, d.Name)
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan fetched, 1)
	go func() {
		v, err := r.safeFetch(ctx, d)
		done <- fetched{value: v, err: err}
	}()

	select {
	case f := <-done:
		return f.value, f.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrSourceUnavailable, timeout)
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err())
	}
}

// safeFetch calls the source with panic recovery.
// A panic is logged with a correlation ID and returned as a source failure.
func (r *Refresher) safeFetch(ctx context.Context, d Descriptor) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			correlationID := uuid.NewString()

			r.logger.Error("source panic",
				"panel", d.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", p),
				"stack", string(debug.Stack()),
			)

			value = nil
			err = fmt.Errorf("%w: source panic (correlation_id: %s)", ErrSourceUnavailable, correlationID)
		}
	}()

	value, err = d.Source.FetchFresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return value, nil
}

// encode turns a source value into the JSON document that gets cached.
// json.RawMessage and []byte values are taken to be JSON already.
func encode(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: source returned no payload", ErrSerialization)
	case json.RawMessage:
		return validJSON(p)
	case []byte:
		return validJSON(p)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return raw, nil
}

func validJSON(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, fmt.Errorf("%w: invalid JSON document", ErrSerialization)
	}
	return bytes.Clone(b), nil
}

// degradedPayload builds the placeholder served when there is nothing else.
func degradedPayload(placeholder map[string]any, cause error) json.RawMessage {
	fields := make(map[string]any, len(placeholder)+2)
	for k, v := range placeholder {
		fields[k] = v
	}
	fields["error"] = cause.Error()
	fields["degraded"] = true

	raw, err := json.Marshal(fields)
	if err != nil {
		// the placeholder itself would not encode
		raw, _ = json.Marshal(map[string]any{
			"error":    cause.Error(),
			"degraded": true,
		})
	}
	return raw
}
