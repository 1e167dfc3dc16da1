// Package relay forwards panel-updated events to NATS.
//
// This package is internal to liveboard. A [Relay] consumes a hub
// subscription and publishes each event as JSON on the subject
// "<prefix>.<panel>", letting other services react to panel changes without
// holding an SSE connection open.
package relay
