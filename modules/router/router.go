// Package router is the navigation collaborator.
//
// It records where the application has been asked to navigate. Rendering the
// destination is the UI's job; modules only call [Module.Push].
package router

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jpalmerr/groupstate/module"
)

// Name is the module namespace.
const Name module.Name = "router"

// DefaultHistoryLimit bounds the recorded navigation history.
const DefaultHistoryLimit = 50

// Named routes used by feature modules.
const (
	RouteHome          = "home"
	RouteGroup         = "group"
	RouteGroupsGallery = "groupsGallery"
)

// DefaultRoutes maps route names to path patterns. Path parameters are
// written as ":param".
var DefaultRoutes = map[string]string{
	RouteHome:          "/",
	RouteGroup:         "/group/:groupId",
	RouteGroupsGallery: "/groupPreview",
}

// Route is a navigation target given either as a path or as a route name
// with parameters.
type Route struct {
	Path   string            `json:"path"`
	Name   string            `json:"name,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// To builds a path route.
func To(path string) Route { return Route{Path: path} }

// Named builds a named route. params are key/value pairs.
func Named(name string, params ...string) Route {
	r := Route{Name: name}
	if len(params) > 0 {
		r.Params = make(map[string]string, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			r.Params[params[i]] = params[i+1]
		}
	}
	return r
}

// Module owns the navigation state.
type Module struct {
	module.Base

	logger  *slog.Logger
	routes  map[string]string
	limit   int
	mu      sync.RWMutex
	current *Route
	history []Route
}

// Option configures the router.
type Option func(*Module)

// WithRoutes replaces the route table.
func WithRoutes(routes map[string]string) Option {
	return func(m *Module) { m.routes = maps.Clone(routes) }
}

// WithHistoryLimit bounds the recorded history. Non-positive values keep the
// default.
func WithHistoryLimit(n int) Option {
	return func(m *Module) {
		if n > 0 {
			m.limit = n
		}
	}
}

// New creates the router module. A nil logger uses slog.Default().
func New(logger *slog.Logger, opts ...Option) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Module{
		Base:   module.NewBase(Name),
		logger: logger,
		routes: maps.Clone(DefaultRoutes),
		limit:  DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Push navigates to r. Named routes are resolved through the route table;
// an unknown name is recorded unresolved and logged.
func (m *Module) Push(r Route) {
	if r.Name != "" {
		path, err := m.resolve(r)
		if err != nil {
			m.logger.Warn("route not resolved", "route", r.Name, "error", err)
		} else {
			r.Path = path
		}
	}
	r.Params = maps.Clone(r.Params)

	m.mu.Lock()
	m.current = &r
	m.history = append(m.history, r)
	if over := len(m.history) - m.limit; over > 0 {
		m.history = slices.Delete(m.history, 0, over)
	}
	m.mu.Unlock()

	m.Committed("push")
	m.logger.Debug("navigated", "path", r.Path, "route", r.Name)
}

func (m *Module) resolve(r Route) (string, error) {
	pattern, ok := m.routes[r.Name]
	if !ok {
		return "", fmt.Errorf("unknown route %q", r.Name)
	}
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		v, ok := r.Params[seg[1:]]
		if !ok {
			return "", fmt.Errorf("route %q: missing param %q", r.Name, seg[1:])
		}
		segments[i] = v
	}
	return strings.Join(segments, "/"), nil
}

// Current returns the last navigation target.
func (m *Module) Current() (Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Route{}, false
	}
	return *m.current, true
}

// History returns recorded navigation targets, oldest first.
func (m *Module) History() []Route {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.history)
}

// Clear forgets the navigation state.
func (m *Module) Clear() {
	m.mu.Lock()
	m.current = nil
	m.history = nil
	m.mu.Unlock()
	m.Committed("clear")
}

// Snapshot returns a JSON-encodable view of the module.
func (m *Module) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return struct {
		Current *Route  `json:"current"`
		History []Route `json:"history"`
	}{m.current, slices.Clone(m.history)}
}

// Push navigates to a route.
type Push struct{ Route Route }

// Target implements module.Command.
func (Push) Target() module.Name { return Name }

// Handle dispatches a router command.
func (m *Module) Handle(_ context.Context, cmd module.Command) error {
	switch c := cmd.(type) {
	case Push:
		m.Push(c.Route)
		return nil
	default:
		return module.UnknownCommand(Name, cmd)
	}
}
