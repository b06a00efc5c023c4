// Package module defines the contracts shared by every feature module of the
// state tree and by the store that composes them.
//
// A module exclusively owns one namespaced slice of state. Other modules may
// read it only through the read-only methods it exposes, and may change it
// only by calling its actions. Every committed mutation and every action
// status transition is reported to hooks registered with [Module.OnMutation]
// and [Module.OnStatus]; the store uses those hooks to publish change events
// and to run plugins such as strict mode.
package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpalmerr/groupstate/meta"
)

// ErrUnknownCommand is returned by [Handler.Handle] for commands the module
// does not understand.
var ErrUnknownCommand = errors.New("module: unknown command")

// Name identifies a module within a store. Names must be unique.
type Name string

// String implements fmt.Stringer.
func (n Name) String() string { return string(n) }

// Mutation describes one committed, synchronous state change.
type Mutation struct {
	Module Name
	Type   string
	At     time.Time
}

// StatusChange describes a transition of a tracked action.
type StatusChange struct {
	Module Name
	Action string
	State  meta.State
	At     time.Time
}

// MutationHook observes committed mutations.
type MutationHook func(Mutation)

// StatusHook observes action status transitions.
type StatusHook func(StatusChange)

// Module is the minimum every feature module implements.
type Module interface {
	// Name returns the module's unique namespace.
	Name() Name

	// Clear resets the module's state and action statuses to initial values.
	Clear()

	// OnMutation registers a hook called after each committed mutation.
	OnMutation(hook MutationHook)

	// OnStatus registers a hook called after each action status transition.
	OnStatus(hook StatusHook)
}

// Validator is implemented by modules that can check their own invariants.
type Validator interface {
	Validate() error
}

// Snapshotter is implemented by modules that can render a read-only,
// JSON-encodable view of their state.
type Snapshotter interface {
	Snapshot() any
}

// Refresher is implemented by modules that can reload their data from the
// server on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Command is a typed request for a module action. Target names the module
// that handles it.
type Command interface {
	Target() Name
}

// Handler is implemented by modules that accept commands through a store's
// dispatch registry.
type Handler interface {
	Handle(ctx context.Context, cmd Command) error
}

// UnknownCommand builds the error a [Handler] returns for an unhandled command.
func UnknownCommand(name Name, cmd Command) error {
	return fmt.Errorf("%w: %s cannot handle %T", ErrUnknownCommand, name, cmd)
}

// Base implements the hook registration half of [Module]. Feature modules
// embed it and call [Base.Committed] and [Base.StatusChanged] after they
// change state. Use [NewBase]; the zero value has no hook registry.
type Base struct {
	name  Name
	now   func() time.Time
	hooks *hookRegistry
}

type hookRegistry struct {
	mu       sync.RWMutex
	mutation []MutationHook
	status   []StatusHook
}

// NewBase creates a Base for the named module.
func NewBase(name Name) Base {
	return Base{name: name, now: time.Now, hooks: &hookRegistry{}}
}

// Name returns the module name.
func (b *Base) Name() Name { return b.name }

// OnMutation registers hook. Nil hooks are ignored.
func (b *Base) OnMutation(hook MutationHook) {
	if hook == nil {
		return
	}
	b.hooks.mu.Lock()
	b.hooks.mutation = append(b.hooks.mutation, hook)
	b.hooks.mu.Unlock()
}

// OnStatus registers hook. Nil hooks are ignored.
func (b *Base) OnStatus(hook StatusHook) {
	if hook == nil {
		return
	}
	b.hooks.mu.Lock()
	b.hooks.status = append(b.hooks.status, hook)
	b.hooks.mu.Unlock()
}

// Committed notifies mutation hooks. Callers must not hold their state lock.
func (b *Base) Committed(mutationType string) {
	b.hooks.mu.RLock()
	hooks := b.hooks.mutation
	b.hooks.mu.RUnlock()

	m := Mutation{Module: b.name, Type: mutationType, At: b.clock()}
	for _, hook := range hooks {
		hook(m)
	}
}

// StatusChanged notifies status hooks.
func (b *Base) StatusChanged(action string, state meta.State) {
	b.hooks.mu.RLock()
	hooks := b.hooks.status
	b.hooks.mu.RUnlock()

	sc := StatusChange{Module: b.name, Action: action, State: state, At: b.clock()}
	for _, hook := range hooks {
		hook(sc)
	}
}

func (b *Base) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

// Track wires a tracker's transitions into the module's status hooks.
func Track[A ~string](b *Base, t *meta.Tracker[A]) {
	t.OnChange(func(action A, state meta.State) {
		b.StatusChanged(string(action), state)
	})
}
