// Package inspector provides a read-only HTTP view of a running state tree.
//
// The inspector serves:
//
//   - GET /: the embedded inspector page
//   - GET /api/state: every module's snapshot as JSON
//   - GET /api/state/{module}: one module's snapshot
//   - GET /api/sse: Server-Sent Events stream of state changes
//
// It never mutates state. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
//
// The inspector is started by [groupstate.App.Start] when enabled in the
// configuration; library users do not need to interact with it directly.
package inspector
