// Package history persists successful panel payloads.
//
// History is optional and best-effort: the refresh and read paths never
// depend on a save succeeding. A [Store] records every fresh payload of the
// panels that opt in, answers "latest" and "recent window" queries, and
// prunes records older than a retention window.
//
// Drivers:
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "memory": process-local store, mostly for tests and demos
//
// If Driver is empty or "none", [Open] returns (nil, nil) and history is disabled.
package history
