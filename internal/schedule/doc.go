// Package schedule runs each panel's refresh on its own timer.
//
// This package is internal to liveboard. It wraps a robfig/cron scheduler
// where every job has a string identity (the panel name, or "maintenance").
// Registering a job under an identity already in use replaces the existing
// entry, so reconfiguration never leaks timers.
//
// Each entry is wrapped with cron.SkipIfStillRunning: ticks of one panel
// never overlap, while different panels run in their own goroutines and
// never wait on each other.
//
// [RunAll] performs the startup initial fetch: every job concurrently,
// bounded by a concurrency limit, with failures collected rather than
// aborting the batch.
package schedule
