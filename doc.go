// Package liveboard provides an embeddable core for live dashboards built
// from slowly-changing external feeds.
//
// Each feed is a panel: a [Source] that fetches the panel's payload, a
// refresh interval and a TTL. A [Board] refreshes every panel on its own
// schedule, caches each payload for its TTL, falls back to the cached or a
// placeholder payload when a source fails, and tells subscribers when a
// panel has new data.
//
// # Quick Start
//
// Create panels and start the board with graceful shutdown:
//
//	src, _ := liveboard.NewHTTPSource("https://api.example.com/weather")
//	weather, _ := liveboard.NewPanel("weather", src, liveboard.WithInterval(10*time.Minute))
//	b, _ := liveboard.New(liveboard.WithPanel(weather))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Reading Panels
//
// [Board.GetPanel] never fails for a configured panel. The [Snapshot] it
// returns says where the payload came from:
//
//   - [OutcomeCached]: an unexpired cache entry
//   - [OutcomeFresh]: the source succeeded just now
//   - [OutcomeStale]: the source failed; the unexpired cached payload is served
//   - [OutcomeDegraded]: the source failed with nothing cached; the payload is
//     the panel's placeholder plus "error" and "degraded" fields
//
// Stale and degraded payloads are never written to the cache, so the next
// read or tick tries the source again.
//
// # Notifications
//
// [Board.Subscribe] returns a [Subscription] receiving an [Update] each time
// a panel is refreshed with fresh data, whether by its schedule or by a read.
// Delivery never blocks: a subscriber whose buffer is full is dropped and its
// channel closed.
//
// # Sources and Transforms
//
// Any type with a FetchFresh method is a [Source]; [SourceFunc] adapts a
// function. [HTTPSource] polls a URL and shapes the body with a [Transform]:
//
//   - [RawJSON]: serves a JSON body as-is
//   - [JSONPath]: extracts one value using dot notation
//   - [Text]: wraps a plain-text body as {"text": ...}
//   - [Regex]: returns capture groups as an object
//   - [Wrap] and [FirstOf]: compose transforms
//
// # History
//
// With [WithHistory], panels created with [WithPersist] append each fresh
// payload to a history.Store. The board warm-starts those panels from their
// latest record and prunes records older than [WithRetention] on the
// [WithMaintenanceSchedule] schedule.
//
// # Architecture
//
// Board wires together several internal packages (under internal/):
//
//   - internal/cache: TTL cache with lazy eviction
//   - internal/refresh: fetch-with-fallback and ordered cache writes
//   - internal/schedule: one cron entry per panel
//   - internal/hub: non-blocking fan-out of panel-updated events
//   - internal/server: REST API and Server-Sent Events
//
// The internal packages are not part of the public API and may change
// without notice.
package liveboard
