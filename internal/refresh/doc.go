// Package refresh implements the per-panel fetch-with-fallback state machine.
//
// This package is internal to liveboard. A [Refresher] calls a panel's
// [Source], and converts every outcome into one of three results:
//
//   - [Fresh]: the source succeeded; the payload is written to the cache and,
//     when the panel persists, saved to history on a best-effort basis
//   - [StaleFallback]: the source failed but an unexpired cache entry exists;
//     that entry is returned untouched
//   - [Degraded]: the source failed and nothing is cached; a placeholder payload
//     carrying an error marker is returned and never cached
//
// Source errors, timeouts, panics and unserializable payloads never escape
// [Refresher.Refresh]. Every call is tagged with a per-panel generation number
// so a slow, older refresh cannot overwrite the result of a newer one.
package refresh
