// Package logging builds the process logger for the liveboard binary.
//
// Library code logs through log/slog. This package supplies a [slog.Handler]
// that writes through zerolog, so the binary gets zerolog's console
// formatting or compact JSON without any call site depending on zerolog.
package logging
