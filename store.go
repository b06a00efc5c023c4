package groupstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/groupstate/internal/events"
	"github.com/jpalmerr/groupstate/module"
)

// ErrUnknownModule is returned by [Store.Dispatch] for commands targeting a
// module the store does not contain.
var ErrUnknownModule = errors.New("groupstate: unknown module")

// Change is one published state change: a committed mutation or an action
// status transition.
type Change = events.Change

// Change kinds.
const (
	KindMutation = events.KindMutation
	KindStatus   = events.KindStatus
)

// Store composes feature modules into one state tree.
//
// Each module owns its namespace. The store observes every module's hooks,
// publishes the resulting [Change] events to subscribers and change
// callbacks, and routes typed commands to the owning module. The store
// itself holds no state beyond the module registry, which is fixed at
// construction.
//
// Store is safe for concurrent use.
type Store struct {
	modules   map[module.Name]module.Module
	order     []module.Name
	broker    *events.Broker
	logger    *slog.Logger
	callbacks []func(Change)

	refreshLimit int
}

// New creates a [Store] from the given options.
//
// At least one module must be registered via [WithModule] or [WithModules].
// Module names must be unique. Plugins run after every module is wired, in
// the order they were given.
//
// Example:
//
//	st, err := groupstate.New(
//	    groupstate.WithModules(authModule, usersModule, invitationsModule),
//	    groupstate.WithStrict(cfg.Dev),
//	    groupstate.WithLogger(logger),
//	)
func New(opts ...Option) (*Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.modules) == 0 {
		return nil, errors.New("at least one module is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		modules:   make(map[module.Name]module.Module, len(cfg.modules)),
		order:     make([]module.Name, 0, len(cfg.modules)),
		broker:    events.NewBroker(),
		logger:    logger,
		callbacks: cfg.changeCallbacks,

		refreshLimit: cfg.refreshLimit,
	}

	for _, m := range cfg.modules {
		name := m.Name()
		if name == "" {
			return nil, errors.New("module name must not be empty")
		}
		if _, dup := s.modules[name]; dup {
			return nil, fmt.Errorf("duplicate module name: %q", name)
		}
		s.modules[name] = m
		s.order = append(s.order, name)
	}

	for _, name := range s.order {
		s.observe(s.modules[name])
	}

	plugins := cfg.plugins
	if cfg.strict {
		plugins = append(plugins, StrictMode())
	}
	for i, p := range plugins {
		if err := p(s); err != nil {
			return nil, fmt.Errorf("plugin %d: %w", i, err)
		}
	}

	return s, nil
}

// observe turns a module's hooks into published changes.
func (s *Store) observe(m module.Module) {
	m.OnMutation(func(mu module.Mutation) {
		s.publish(Change{
			Kind:     KindMutation,
			Module:   string(mu.Module),
			Mutation: mu.Type,
			At:       mu.At,
		})
	})
	m.OnStatus(func(sc module.StatusChange) {
		c := Change{
			Kind:   KindStatus,
			Module: string(sc.Module),
			Action: sc.Action,
			Status: string(sc.State.Status),
			At:     sc.At,
		}
		if sc.State.Err != nil {
			msg := sc.State.Err.Error()
			c.Error = &msg
		}
		s.publish(c)
	})
}

func (s *Store) publish(c Change) {
	c = s.broker.Publish(c)
	for _, cb := range s.callbacks {
		invokeCallbackSafe(cb, c, s.logger)
	}
}

// Dispatch routes cmd to the module named by cmd.Target().
//
// It returns an error wrapping [ErrUnknownModule] if no such module is
// registered, and one wrapping [module.ErrUnknownCommand] if the module does
// not accept the command. Otherwise it returns the module's result.
func (s *Store) Dispatch(ctx context.Context, cmd module.Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", module.ErrUnknownCommand)
	}
	name := cmd.Target()
	m, ok := s.modules[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	h, ok := m.(module.Handler)
	if !ok {
		return module.UnknownCommand(name, cmd)
	}
	return h.Handle(ctx, cmd)
}

// Module returns the module registered under name.
func (s *Store) Module(name module.Name) (module.Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

// Names returns the registered module names in registration order.
func (s *Store) Names() []module.Name {
	return slices.Clone(s.order)
}

// Snapshot returns every module's read-only view keyed by module name.
// Modules that do not implement [module.Snapshotter] are omitted.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.order))
	for _, name := range s.order {
		if snap, ok := s.modules[name].(module.Snapshotter); ok {
			out[string(name)] = snap.Snapshot()
		}
	}
	return out
}

// Clear resets every module, in registration order.
func (s *Store) Clear() {
	for _, name := range s.order {
		s.modules[name].Clear()
	}
}

// Refresh reloads every module implementing [module.Refresher]
// concurrently, at most [WithRefreshLimit] at a time, and waits for all of
// them. Failures do not cancel the other refreshes; they are joined into the
// returned error in registration order.
func (s *Store) Refresh(ctx context.Context) error {
	var refreshers []module.Name
	for _, name := range s.order {
		if _, ok := s.modules[name].(module.Refresher); ok {
			refreshers = append(refreshers, name)
		}
	}

	errs := make([]error, len(refreshers))
	var g errgroup.Group
	if s.refreshLimit > 0 {
		g.SetLimit(s.refreshLimit)
	}
	for i, name := range refreshers {
		r := s.modules[name].(module.Refresher)
		g.Go(func() error {
			if err := r.Refresh(ctx); err != nil {
				errs[i] = fmt.Errorf("refresh %s: %w", name, err)
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}

	// Wait reports only the first failure
	return errors.Join(errs...)
}

// Subscribe returns a channel of published changes. The channel is
// buffered; a slow consumer misses changes rather than blocking modules.
// Call [Store.Unsubscribe] when done.
func (s *Store) Subscribe() <-chan Change {
	return s.broker.Subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch <-chan Change) {
	s.broker.Unsubscribe(ch)
}

// Latest returns the most recent change of every module, ordered by
// sequence number.
func (s *Store) Latest() []Change {
	return s.broker.Latest()
}

// Logger returns the store's logger, for plugins.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// invokeCallbackSafe calls a change callback with panic recovery. Panics are
// logged with a correlation id and do not propagate to the mutating module.
func invokeCallbackSafe(cb func(Change), c Change, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked",
				"panic", r,
				"module", c.Module,
				"seq", c.Seq,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(c)
}
