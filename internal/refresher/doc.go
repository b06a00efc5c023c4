// Package refresher keeps module data fresh by calling each module's
// Refresh on a schedule.
//
// It implements a worker pool with a configurable concurrency limit. A
// panicking refresher is contained and reported as a failed [Result]; the
// other targets keep running.
//
// The main components are:
//
//   - [Scheduler]: periodic refresh loop with worker pool
//   - [Target]: a module and its refresh interval
//   - [Result]: outcome of one refresh
package refresher
