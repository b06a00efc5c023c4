// Package meta tracks the lifecycle of named asynchronous actions.
//
// Every feature module declares the actions it performs (fetch, send, ...)
// and wraps each one with [Tracker.Run]. The tracker records whether the
// action is in flight, finished, or failed, and keeps the last failure so
// callers can render loading and error affordances uniformly.
//
// Tracking never swallows errors: Run returns exactly what the wrapped
// function returned.
package meta

import (
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
)

// ErrUnknownAction is returned by [Tracker.Run] for actions the tracker was
// not declared with.
var ErrUnknownAction = errors.New("meta: unknown action")

// Status is the lifecycle position of a tracked action.
type Status string

const (
	// StatusIdle means the action has not run since creation or the last reset.
	StatusIdle Status = "idle"

	// StatusPending means the action is in flight.
	StatusPending Status = "pending"

	// StatusSuccess means the last run completed without error.
	StatusSuccess Status = "success"

	// StatusError means the last run failed. The failure is kept in [State.Err].
	StatusError Status = "error"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// State is the current status of one action plus its last failure.
type State struct {
	Status Status
	Err    error
}

// Pending reports whether the action is in flight.
func (s State) Pending() bool { return s.Status == StatusPending }

// Failed reports whether the last run failed.
func (s State) Failed() bool { return s.Status == StatusError }

// MarshalJSON renders the state as {"status": "...", "error": "..."}.
func (s State) MarshalJSON() ([]byte, error) {
	out := struct {
		Status Status  `json:"status"`
		Error  *string `json:"error,omitempty"`
	}{Status: s.Status}
	if s.Err != nil {
		msg := s.Err.Error()
		out.Error = &msg
	}
	return json.Marshal(out)
}

// Tracker records a [State] per declared action.
//
// A is normally a module-local string type so that action names are checked
// at compile time. Tracker is safe for concurrent use.
type Tracker[A ~string] struct {
	mu       sync.RWMutex
	actions  []A
	states   map[A]State
	onChange []func(action A, state State)
}

// NewTracker creates a tracker for the given actions, all starting idle.
func NewTracker[A ~string](actions ...A) *Tracker[A] {
	t := &Tracker[A]{
		states: make(map[A]State, len(actions)),
	}
	for _, a := range actions {
		if _, dup := t.states[a]; dup {
			continue
		}
		t.actions = append(t.actions, a)
		t.states[a] = State{Status: StatusIdle}
	}
	return t
}

// OnChange registers fn to be called after every transition. Hooks run
// outside the tracker's lock, in registration order.
func (t *Tracker[A]) OnChange(fn func(action A, state State)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.onChange = append(t.onChange, fn)
	t.mu.Unlock()
}

// Run marks action pending, invokes fn, and records the outcome.
//
// On success the status becomes success and any stored error is cleared.
// On failure the status becomes error, the error is stored, and the same
// error is returned. If fn panics the action is recorded as failed and the
// panic continues. Overlapping runs of one action are not serialised: the
// run that finishes last determines the final state.
func (t *Tracker[A]) Run(ctx context.Context, action A, fn func(ctx context.Context) error) error {
	if !t.declared(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, string(action))
	}

	t.set(action, State{Status: StatusPending})

	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit
			t.set(action, State{Status: StatusError, Err: errors.New("meta: action exited without returning")})
			return
		}
		t.set(action, State{Status: StatusError, Err: fmt.Errorf("panic: %v", r)})
		panic(r)
	}()

	err := fn(ctx)
	returned = true
	if err != nil {
		t.set(action, State{Status: StatusError, Err: err})
		return err
	}

	t.set(action, State{Status: StatusSuccess})
	return nil
}

// Get returns the state of action. Undeclared actions report idle.
func (t *Tracker[A]) Get(action A) State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if st, ok := t.states[action]; ok {
		return st
	}
	return State{Status: StatusIdle}
}

// Status returns the status of action.
func (t *Tracker[A]) Status(action A) Status {
	return t.Get(action).Status
}

// Err returns the last failure of action, or nil unless its status is error.
func (t *Tracker[A]) Err(action A) error {
	return t.Get(action).Err
}

// Actions returns the declared actions in declaration order.
func (t *Tracker[A]) Actions() []A {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]A(nil), t.actions...)
}

// Snapshot returns a copy of every action's state.
func (t *Tracker[A]) Snapshot() map[A]State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[A]State, len(t.states))
	for a, st := range t.states {
		out[a] = st
	}
	return out
}

// Reset restores every action to idle with no stored error.
func (t *Tracker[A]) Reset() {
	t.mu.Lock()
	changed := make([]A, 0, len(t.actions))
	for _, a := range t.actions {
		if st := t.states[a]; st.Status != StatusIdle || st.Err != nil {
			changed = append(changed, a)
		}
		t.states[a] = State{Status: StatusIdle}
	}
	hooks := t.onChange
	t.mu.Unlock()

	for _, a := range changed {
		for _, fn := range hooks {
			fn(a, State{Status: StatusIdle})
		}
	}
}

func (t *Tracker[A]) declared(action A) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.states[action]
	return ok
}

func (t *Tracker[A]) set(action A, st State) {
	t.mu.Lock()
	t.states[action] = st
	hooks := t.onChange
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(action, st)
	}
}
