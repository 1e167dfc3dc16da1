package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// MaintenanceID is the job identity reserved for history maintenance.
const MaintenanceID = "maintenance"

// ErrInvalidInterval is returned when a periodic job is registered with a
// non-positive interval.
var ErrInvalidInterval = errors.New("interval must be positive")

// Job is the work run on each tick. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// specParser accepts standard five-field specs and descriptors such as
// "@daily" or "@every 1h".
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a schedule [Scheduler.Cron] accepts.
func ValidateSpec(spec string) error {
	_, err := specParser.Parse(spec)
	return err
}

// Scheduler owns one cron entry per job identity.
//
// All methods are safe for concurrent use. Jobs may be registered before or
// after Start; nothing runs until Start is called.
type Scheduler struct {
	logger *slog.Logger
	clog   cron.Logger
	c      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// New creates a stopped [Scheduler].
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	clog := cronLogger{logger: logger}
	return &Scheduler{
		logger:  logger,
		clog:    clog,
		c:       cron.New(cron.WithParser(specParser), cron.WithLogger(clog), cron.WithChain(cron.Recover(clog))),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins running registered jobs in the background.
//
// Jobs receive a context derived from ctx. Start is idempotent; if Stop was
// called first, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.logger.Debug("scheduler started", "jobs", len(s.entries))
}

// Stop cancels the context passed to running jobs and waits for them to
// return, or for ctx to be done. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-s.c.Stop().Done():
		s.logger.Debug("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
		return ctx.Err()
	}
}

// Every registers job to run every interval under id, replacing any job
// already registered under id.
func (s *Scheduler) Every(id string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %q: %w", id, ErrInvalidInterval)
	}
	s.register(id, cron.Every(interval), job)
	return nil
}

// Cron registers job on a cron spec under id, replacing any job already
// registered under id.
func (s *Scheduler) Cron(id, spec string, job Job) error {
	sched, err := specParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", id, spec, err)
	}
	s.register(id, sched, job)
	return nil
}

// Remove unregisters the job under id. It reports whether a job was removed;
// removing an unknown id is a no-op.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	eid, ok := s.entries[id]
	if !ok {
		return false
	}
	s.c.Remove(eid)
	delete(s.entries, id)
	s.logger.Debug("job removed", "job", id)
	return true
}

// IDs returns the registered job identities in sorted order.
func (s *Scheduler) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Next returns when the job under id runs next. The time is zero until the
// scheduler has started.
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	eid, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.c.Entry(eid).Next, true
}

func (s *Scheduler) register(id string, sched cron.Schedule, job Job) {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(s.clog)).Then(cron.FuncJob(func() {
		ctx := s.jobContext()
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	}))

	s.mu.Lock()
	defer s.mu.Unlock()

	old, replaced := s.entries[id]
	if replaced {
		s.c.Remove(old)
	}
	s.entries[id] = s.c.Schedule(sched, wrapped)
	s.logger.Debug("job registered", "job", id, "replaced", replaced)
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
