// Package source provides the shared HTTP client used by liveboard's HTTP
// panel sources.
//
// This package is internal to liveboard. A single [Client] is shared by every
// HTTP source so connections to the same upstream host are pooled. Requests
// carry per-call timeouts via context, bodies are capped at 1MB, and the
// transport negotiates HTTP/2 with servers that offer it.
package source
