package liveboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jpalmerr/liveboard/history"
	"github.com/jpalmerr/liveboard/internal/cache"
	"github.com/jpalmerr/liveboard/internal/hub"
	"github.com/jpalmerr/liveboard/internal/refresh"
	"github.com/jpalmerr/liveboard/internal/schedule"
	"github.com/jpalmerr/liveboard/internal/server"
)

const (
	defaultPort                = 8080
	defaultMaxConcurrency      = 10
	defaultRetention           = 7 * 24 * time.Hour
	defaultMaintenanceSchedule = "@daily"
	shutdownTimeout            = 5 * time.Second
)

var (
	// ErrUnknownPanel is returned for reads of panels the board does not have.
	ErrUnknownPanel = errors.New("unknown panel")

	// ErrHistoryDisabled is returned by history operations on a board built
	// without [WithHistory].
	ErrHistoryDisabled = errors.New("history is not configured")

	// ErrAlreadyStarted is returned by a second call to [Board.Start].
	ErrAlreadyStarted = errors.New("board already started")
)

// Subscription is one viewer's stream of panel-updated events.
// Receive from C(); call Close or [Board.Unsubscribe] when done.
type Subscription = hub.Subscription

// Update tells a viewer that a panel has new data. It carries the panel
// name only; read the payload with [Board.GetPanel].
type Update = hub.Event

// Board refreshes a set of panels on their own schedules, caches each one
// for its TTL and tells subscribers when a panel changes.
//
// Board is safe for concurrent use.
type Board struct {
	title          string
	port           int
	serve          bool
	maxConcurrency int
	logger         *slog.Logger
	history        history.Store
	retention      time.Duration
	maintenance    string
	warmStart      bool
	callbacks      []func(RefreshResult)
	onReady        []func()

	cache     *cache.TTL[json.RawMessage]
	refresher *refresh.Refresher
	hub       *hub.Hub
	scheduler *schedule.Scheduler
	reads     singleflight.Group
	started   atomic.Bool
	bg        sync.WaitGroup

	mu     sync.RWMutex
	panels map[string]Panel
	order  []string
	live   bool
	runCtx context.Context
}

// New creates a [Board] with the given options.
//
// At least one panel must be configured via [WithPanel] or [WithPanels].
// Panel names must be unique.
//
// Example:
//
//	b, err := liveboard.New(
//	    liveboard.WithPanels(weather, transit),
//	    liveboard.WithHistory(store),
//	    liveboard.WithPort(9090),
//	)
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		port:           defaultPort,
		serve:          true,
		maxConcurrency: defaultMaxConcurrency,
		logger:         slog.Default(),
		retention:      defaultRetention,
		maintenance:    defaultMaintenanceSchedule,
		warmStart:      true,
		now:            time.Now,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.panels) == 0 {
		return nil, errors.New("at least one panel is required")
	}
	panels, order, err := indexPanels(cfg.panels)
	if err != nil {
		return nil, err
	}

	c := cache.New[json.RawMessage](cache.WithClock(cfg.now))
	refreshOpts := []refresh.Option{refresh.WithClock(cfg.now)}
	if cfg.history != nil {
		refreshOpts = append(refreshOpts, refresh.WithSaver(cfg.history))
	}

	return &Board{
		title:          cfg.title,
		port:           cfg.port,
		serve:          cfg.serve,
		maxConcurrency: cfg.maxConcurrency,
		logger:         cfg.logger,
		history:        cfg.history,
		retention:      cfg.retention,
		maintenance:    cfg.maintenance,
		warmStart:      cfg.warmStart,
		callbacks:      cfg.callbacks,
		onReady:        cfg.onReady,
		cache:          c,
		refresher:      refresh.New(c, cfg.logger, refreshOpts...),
		hub:            hub.New(cfg.subscriberBuffer, cfg.logger),
		scheduler:      schedule.New(cfg.logger),
		panels:         panels,
		order:          order,
	}, nil
}

// indexPanels checks names and returns the panels by name and in order.
func indexPanels(list []Panel) (map[string]Panel, []string, error) {
	panels := make(map[string]Panel, len(list))
	order := make([]string, 0, len(list))
	for i, p := range list {
		if p.name == "" || p.source == nil {
			return nil, nil, fmt.Errorf("panel %d was not created with NewPanel", i)
		}
		if _, dup := panels[p.name]; dup {
			return nil, nil, fmt.Errorf("duplicate panel name: %q", p.name)
		}
		panels[p.name] = p
		order = append(order, p.name)
	}
	return panels, order, nil
}

// Start runs the board and blocks until ctx is cancelled.
//
// Start restores persisted panels from history, starts the HTTP server,
// fetches every panel once, then refreshes each panel on its own interval.
// When ctx is cancelled it stops the schedule, waits up to 5 seconds for
// running refreshes and closes every subscription.
//
// Returns nil on clean shutdown, or an error if the HTTP server fails to
// start. Start may only be called once.
func (b *Board) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	b.logger.Info("liveboard starting",
		"panels", len(b.Panels()),
		"port", b.port,
		"server", b.serve,
	)

	if ctx.Err() != nil {
		b.logger.Info("liveboard stopped")
		return nil
	}

	restored := b.restore(ctx)

	if b.serve {
		srv := server.NewServer(boardView{b}, b.port, b.title, b.logger)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	b.scheduler.Start(ctx)
	b.initialFetch(ctx, restored)

	b.mu.Lock()
	b.live = true
	b.runCtx = ctx
	for _, name := range b.order {
		b.schedule(b.panels[name])
	}
	b.mu.Unlock()

	if b.history != nil {
		err := b.scheduler.Cron(schedule.MaintenanceID, b.maintenance, func(ctx context.Context) {
			_, _ = b.RunMaintenance(ctx)
		})
		if err != nil {
			b.logger.Error("failed to schedule maintenance", "error", err)
		}
	}

	for _, fn := range b.onReady {
		fn()
	}

	<-ctx.Done()
	b.shutdown()
	b.logger.Info("liveboard stopped")
	return nil
}

func (b *Board) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = b.scheduler.Stop(stopCtx)

	done := make(chan struct{})
	go func() {
		b.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-stopCtx.Done():
		b.logger.Warn("background refreshes still running at shutdown")
	}

	b.hub.Close()
}

// restore loads the latest persisted payload of each persisting panel into
// the cache when it is still within the panel's TTL. It returns the names of
// the restored panels.
func (b *Board) restore(ctx context.Context) map[string]bool {
	restored := make(map[string]bool)
	if b.history == nil || !b.warmStart {
		return restored
	}

	for _, p := range b.Panels() {
		if !p.persist {
			continue
		}
		rec, ok, err := b.history.LoadLatest(ctx, p.name)
		if err != nil {
			b.logger.Warn("warm start failed", "panel", p.name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if b.cache.Restore(p.name, rec.Payload, rec.FetchedAt, rec.FetchedAt.Add(p.ttl)) {
			restored[p.name] = true
			b.logger.Debug("panel restored from history", "panel", p.name, "fetched_at", rec.FetchedAt)
		}
	}
	return restored
}

// initialFetch refreshes every panel not restored from history once.
func (b *Board) initialFetch(ctx context.Context, skip map[string]bool) {
	var names []string
	for _, p := range b.Panels() {
		if !skip[p.name] {
			names = append(names, p.name)
		}
	}

	err := schedule.RunAll(ctx, names, b.maxConcurrency, func(ctx context.Context, name string) error {
		p, ok := b.Panel(name)
		if !ok {
			return nil
		}
		res := b.refresh(ctx, p)
		if res.Outcome != refresh.Fresh {
			return res.Err
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("initial fetch incomplete", "error", err)
	}
}

// schedule registers p's periodic refresh. Callers hold b.mu.
func (b *Board) schedule(p Panel) {
	err := b.scheduler.Every(p.name, p.interval, func(ctx context.Context) {
		b.refresh(ctx, p)
	})
	if err != nil {
		b.logger.Error("failed to schedule panel", "panel", p.name, "error", err)
	}
}

// refresh runs one refresh of p, notifies subscribers when the cache took a
// fresh payload and reports to callbacks.
func (b *Board) refresh(ctx context.Context, p Panel) refresh.Result {
	res := b.refresher.Refresh(ctx, p.descriptor())

	if res.Superseded {
		// a newer refresh already wrote; report what the cache now holds
		if e, ok := b.cache.Entry(p.name); ok {
			res.Payload = e.Value
			res.UpdatedAt = e.UpdatedAt
		}
	}

	notified := false
	if res.Written {
		if _, ok := b.Panel(p.name); !ok {
			// removed by Reconfigure while the fetch was in flight
			b.cache.Delete(p.name)
			return res
		}
		b.hub.Publish(p.name)
		notified = true
	}

	if len(b.callbacks) > 0 {
		rr := RefreshResult{
			PanelName:  res.Panel,
			Outcome:    resultOutcome(res),
			Payload:    copyBytes(res.Payload),
			UpdatedAt:  res.UpdatedAt,
			Latency:    res.Latency,
			Generation: res.Generation,
			Notified:   notified,
			Error:      res.Err,
		}
		for _, cb := range b.callbacks {
			invokeCallbackSafe(cb, rr, b.logger)
		}
	}
	return res
}

// GetPanel returns the panel's current payload.
//
// An unexpired cache entry is served as-is. Otherwise the panel is refreshed
// synchronously; concurrent reads of the same panel share one refresh. The
// refresh is bounded by the panel's timeout and is not cut short when ctx is
// cancelled, so other waiting readers still get its result.
//
// The only error is [ErrUnknownPanel]; failures are reported through
// [Snapshot.Outcome] and [Snapshot.Err].
func (b *Board) GetPanel(ctx context.Context, name string) (Snapshot, error) {
	p, ok := b.Panel(name)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownPanel, name)
	}

	if e, ok := b.cache.Entry(name); ok {
		return Snapshot{
			Name:      name,
			Outcome:   OutcomeCached,
			Payload:   copyBytes(e.Value),
			UpdatedAt: e.UpdatedAt,
			ExpiresAt: e.ExpiresAt,
		}, nil
	}

	v, _, _ := b.reads.Do(name, func() (any, error) {
		return b.refresh(context.WithoutCancel(ctx), p), nil
	})
	res := v.(refresh.Result)

	snap := snapshotOf(res)
	if res.Outcome == refresh.Fresh && !res.UpdatedAt.IsZero() {
		snap.ExpiresAt = res.UpdatedAt.Add(p.ttl)
	}
	return snap, nil
}

// Panels returns the configured panels in configuration order.
func (b *Board) Panels() []Panel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Panel, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.panels[name])
	}
	return out
}

// Panel returns the named panel.
func (b *Board) Panel(name string) (Panel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.panels[name]
	return p, ok
}

// Subscribe registers a new viewer. The returned subscription receives an
// [Update] each time a panel is refreshed with fresh data.
//
// A subscriber that falls more than the buffer size behind is dropped and
// its channel closed. After the board stops, the channel is closed.
func (b *Board) Subscribe() *Subscription {
	return b.hub.Subscribe()
}

// Unsubscribe removes sub. Safe to call more than once.
func (b *Board) Unsubscribe(sub *Subscription) {
	b.hub.Unsubscribe(sub)
}

// Subscribers returns the number of live subscriptions.
func (b *Board) Subscribers() int {
	return b.hub.Len()
}

// Reconfigure replaces the board's panels.
//
// Removed panels stop refreshing and their cached data is dropped. On a
// running board every remaining panel is rescheduled under its own name,
// replacing its old job, and new panels are fetched immediately in the
// background.
func (b *Board) Reconfigure(panels ...Panel) error {
	if len(panels) == 0 {
		return errors.New("at least one panel is required")
	}
	next, order, err := indexPanels(panels)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.panels
	b.panels, b.order = next, order

	var removed, added []string
	for name := range prev {
		if _, ok := next[name]; !ok {
			removed = append(removed, name)
			b.scheduler.Remove(name)
			b.refresher.Forget(name)
			b.cache.Delete(name)
		}
	}

	if b.live {
		for _, name := range order {
			p := next[name]
			b.schedule(p)
			if _, existed := prev[name]; !existed {
				added = append(added, name)
				ctx := b.runCtx
				b.bg.Add(1)
				go func() {
					defer b.bg.Done()
					b.refresh(ctx, p)
				}()
			}
		}
	}

	b.logger.Info("panels reconfigured",
		"panels", len(order),
		"added", added,
		"removed", removed,
	)
	return nil
}

// History returns persisted payloads of the named panel within window,
// newest first, at most limit records.
func (b *Board) History(ctx context.Context, name string, window time.Duration, limit int) ([]history.Record, error) {
	if _, ok := b.Panel(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPanel, name)
	}
	if b.history == nil {
		return nil, ErrHistoryDisabled
	}
	return b.history.LoadHistory(ctx, name, window, limit)
}

// RunMaintenance deletes history records older than the retention window
// and returns how many were removed.
func (b *Board) RunMaintenance(ctx context.Context) (int64, error) {
	if b.history == nil {
		return 0, ErrHistoryDisabled
	}

	n, err := b.history.Prune(ctx, b.retention)
	if err != nil {
		b.logger.Error("history maintenance failed", "error", err)
		return 0, err
	}
	b.logger.Info("history pruned", "removed", n, "retention", b.retention)
	return n, nil
}

// Port returns the configured HTTP port.
func (b *Board) Port() int {
	return b.port
}

// invokeCallbackSafe calls a refresh callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(RefreshResult), result RefreshResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("refresh callback panicked",
				"panic", r,
				"panel", result.PanelName,
			)
		}
	}()
	cb(result)
}
