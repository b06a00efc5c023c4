// Package currentgroup holds the group the authenticated user is looking at.
//
// Most group-scoped modules read [Module.ID] to decide which group to load
// or act on.
package currentgroup

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jpalmerr/groupstate/meta"
	"github.com/jpalmerr/groupstate/module"
)

// Name is the module namespace.
const Name module.Name = "currentGroup"

// Action names a tracked current group action.
type Action string

// ActionFetch loads the selected group's details.
const ActionFetch Action = "fetch"

// Group is the detail view of a group.
type Group struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Members     []int64 `json:"members"`
}

// API is the data-access collaborator for groups.
type API interface {
	Get(ctx context.Context, id int64) (Group, error)
}

// Module owns the current group slice of state.
type Module struct {
	module.Base

	api   API
	mu    sync.RWMutex
	id    int64
	group *Group
	meta  *meta.Tracker[Action]
}

// New creates the current group module.
func New(api API) *Module {
	m := &Module{
		Base: module.NewBase(Name),
		api:  api,
		meta: meta.NewTracker(ActionFetch),
	}
	module.Track(&m.Base, m.meta)
	return m
}

// Select makes id the current group and loads its details.
//
// The id is committed before the request so that dependent modules see the
// new selection immediately; the details follow when the request completes.
func (m *Module) Select(ctx context.Context, id int64) error {
	m.commit("select", func() {
		if m.id != id {
			m.group = nil
		}
		m.id = id
	})
	return m.fetch(ctx, id)
}

// Refresh reloads the selected group. It is a no-op when nothing is selected.
func (m *Module) Refresh(ctx context.Context) error {
	id, ok := m.ID()
	if !ok {
		return nil
	}
	return m.fetch(ctx, id)
}

func (m *Module) fetch(ctx context.Context, id int64) error {
	return m.meta.Run(ctx, ActionFetch, func(ctx context.Context) error {
		g, err := m.api.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get group %d: %w", id, err)
		}
		m.commit("set", func() {
			// a newer selection wins over a late response
			if m.id == g.ID {
				m.group = &g
			}
		})
		return nil
	})
}

// ID returns the selected group id.
func (m *Module) ID() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id, m.id != 0
}

// Group returns the selected group's details once loaded.
func (m *Module) Group() (Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.group == nil {
		return Group{}, false
	}
	g := *m.group
	g.Members = slices.Clone(g.Members)
	return g, true
}

// IsMember reports whether userID belongs to the loaded current group.
func (m *Module) IsMember(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.group != nil && slices.Contains(m.group.Members, userID)
}

// Clear forgets the selection.
func (m *Module) Clear() {
	m.commit("clear", func() {
		m.id = 0
		m.group = nil
	})
	m.meta.Reset()
}

// Status returns the state of a tracked action.
func (m *Module) Status(a Action) meta.State {
	return m.meta.Get(a)
}

// Validate checks that loaded details match the selection.
func (m *Module) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.group != nil && m.group.ID != m.id {
		return fmt.Errorf("currentgroup: details for %d but %d selected", m.group.ID, m.id)
	}
	return nil
}

// Snapshot returns a JSON-encodable view of the module.
func (m *Module) Snapshot() any {
	g, _ := m.Group()
	id, _ := m.ID()
	var group *Group
	if g.ID != 0 {
		group = &g
	}
	return struct {
		ID    int64                 `json:"id"`
		Group *Group                `json:"group"`
		Meta  map[Action]meta.State `json:"meta"`
	}{id, group, m.meta.Snapshot()}
}

func (m *Module) commit(mutation string, fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.Committed(mutation)
}

// Select makes a group current.
type Select struct{ ID int64 }

// Target implements module.Command.
func (Select) Target() module.Name { return Name }

// Handle dispatches a current group command.
func (m *Module) Handle(ctx context.Context, cmd module.Command) error {
	switch c := cmd.(type) {
	case Select:
		return m.Select(ctx, c.ID)
	default:
		return module.UnknownCommand(Name, cmd)
	}
}
