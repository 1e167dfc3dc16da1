// Package server provides the HTTP surface of a liveboard.
//
// This package is internal to liveboard and handles all HTTP concerns:
//
//   - Index: "/" returns the board title and panel names as JSON
//   - REST API: "/api/panels" lists panels, "/api/panels/{name}" serves one
//     panel's payload and "/api/panels/{name}/history" its saved history
//   - Server-Sent Events: "/api/sse" announces which panel changed
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the liveboard library should not need to interact with this
// package directly. The server is started automatically by [liveboard.Board.Start].
package server
