// Package hub provides the publish/subscribe broadcaster that tells live
// viewers which panel changed.
//
// This package is internal to liveboard. Each subscriber owns a buffered
// channel of [Event] values. [Hub.Publish] snapshots the subscriber set under
// a read lock and then attempts a non-blocking send to each member; a
// subscriber whose channel is closed or whose buffer is full is removed from
// the live set without affecting delivery to anyone else.
//
// Removal is idempotent, so a client-initiated unsubscribe and a
// failed-delivery cleanup can race safely.
package hub
