// Package cache provides the TTL cache that backs every panel read.
//
// This package is internal to liveboard. Entries are keyed by panel name and
// carry their own expiry; an expired entry is invisible to readers and is
// removed the next time it is looked up. There is no background sweeper.
//
// The main components are:
//
//   - [TTL]: Mutex-guarded map of entries with lazy eviction
//   - [Entry]: A cached value together with its write and expiry times
//
// The clock is injectable so expiry boundaries can be tested deterministically.
package cache
