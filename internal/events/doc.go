// Package events provides the change stream of the state tree.
//
// This package is internal to groupstate. Every committed mutation and every
// action status transition of every module is published to a [Broker] as a
// [Change]. Consumers (the state inspector, change callbacks, tests)
// subscribe and re-derive whatever they display, which replaces implicit
// reactivity with an explicit observer mechanism.
//
// The main components are:
//
//   - [Publisher]: Interface for publishing changes
//   - [Broker]: In-memory fan-out with per-module latest change replay
//   - [Change]: Wire representation of a single state change
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the committing module).
package events
