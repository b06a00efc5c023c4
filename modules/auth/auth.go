// Package auth holds the authenticated user.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/jpalmerr/groupstate/meta"
	"github.com/jpalmerr/groupstate/module"
)

// Name is the module namespace.
const Name module.Name = "auth"

// Action names a tracked auth action.
type Action string

// ActionRefresh reloads the authenticated user.
const ActionRefresh Action = "refresh"

// User is the authenticated user as reported by the server.
type User struct {
	ID           int64  `json:"id"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	CurrentGroup int64  `json:"current_group,omitempty"`
}

// API is the data-access collaborator for the auth status.
type API interface {
	Status(ctx context.Context) (User, error)
}

// GroupSelector is the slice of the current group module auth depends on.
type GroupSelector interface {
	ID() (int64, bool)
	Select(ctx context.Context, id int64) error
}

// Module owns the authenticated user slice of state.
type Module struct {
	module.Base

	api    API
	groups GroupSelector
	mu     sync.RWMutex
	user   *User
	meta   *meta.Tracker[Action]
}

// New creates the auth module. groups may be nil, in which case refreshing
// does not follow the user's current group.
func New(api API, groups GroupSelector) *Module {
	m := &Module{
		Base:   module.NewBase(Name),
		api:    api,
		groups: groups,
		meta:   meta.NewTracker(ActionRefresh),
	}
	module.Track(&m.Base, m.meta)
	return m
}

// Refresh reloads the authenticated user. When the server reports a current
// group other than the selected one, that group is selected.
func (m *Module) Refresh(ctx context.Context) error {
	return m.meta.Run(ctx, ActionRefresh, func(ctx context.Context) error {
		u, err := m.api.Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		m.commit("set", func() { m.user = &u })

		if m.groups == nil || u.CurrentGroup == 0 {
			return nil
		}
		if id, ok := m.groups.ID(); ok && id == u.CurrentGroup {
			return nil
		}
		return m.groups.Select(ctx, u.CurrentGroup)
	})
}

// User returns the authenticated user.
func (m *Module) User() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// IsLoggedIn reports whether a user has been loaded.
func (m *Module) IsLoggedIn() bool {
	_, ok := m.User()
	return ok
}

// Clear forgets the user.
func (m *Module) Clear() {
	m.commit("clear", func() { m.user = nil })
	m.meta.Reset()
}

// Status returns the state of a tracked action.
func (m *Module) Status(a Action) meta.State {
	return m.meta.Get(a)
}

// Snapshot returns a JSON-encodable view of the module.
func (m *Module) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return struct {
		User *User                 `json:"user"`
		Meta map[Action]meta.State `json:"meta"`
	}{m.user, m.meta.Snapshot()}
}

func (m *Module) commit(mutation string, fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.Committed(mutation)
}

// RefreshUser reloads the authenticated user.
type RefreshUser struct{}

// Target implements module.Command.
func (RefreshUser) Target() module.Name { return Name }

// Handle dispatches an auth command.
func (m *Module) Handle(ctx context.Context, cmd module.Command) error {
	switch cmd.(type) {
	case RefreshUser:
		return m.Refresh(ctx)
	default:
		return module.UnknownCommand(Name, cmd)
	}
}
