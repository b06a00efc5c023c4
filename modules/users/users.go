// Package users holds the users visible to the authenticated user.
//
// Other modules resolve user ids through [Module.Get] at read time rather
// than copying user records into their own state.
package users

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jpalmerr/groupstate/entity"
	"github.com/jpalmerr/groupstate/meta"
	"github.com/jpalmerr/groupstate/module"
)

// Name is the module namespace.
const Name module.Name = "users"

// Action names a tracked users action.
type Action string

// ActionFetch loads all users.
const ActionFetch Action = "fetch"

// User is a platform user.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Photo       string `json:"photo,omitempty"`
}

// API is the data-access collaborator for users.
type API interface {
	List(ctx context.Context) ([]User, error)
}

// Module owns the users slice of state.
type Module struct {
	module.Base

	api   API
	mu    sync.RWMutex
	users *entity.Collection[int64, User]
	meta  *meta.Tracker[Action]
}

// New creates the users module.
func New(api API) *Module {
	m := &Module{
		Base:  module.NewBase(Name),
		api:   api,
		users: entity.NewCollection(func(u User) int64 { return u.ID }),
		meta:  meta.NewTracker(ActionFetch),
	}
	module.Track(&m.Base, m.meta)
	return m
}

// Fetch replaces the local users with the server's list.
func (m *Module) Fetch(ctx context.Context) error {
	return m.meta.Run(ctx, ActionFetch, func(ctx context.Context) error {
		list, err := m.api.List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		m.commit("set", func() { m.users.Set(list) })
		return nil
	})
}

// Refresh reloads users from the server.
func (m *Module) Refresh(ctx context.Context) error {
	return m.Fetch(ctx)
}

// Update inserts or replaces a user locally, e.g. after a profile edit
// pushed by the server.
func (m *Module) Update(u User) {
	m.commit("append", func() { m.users.Append(u) })
}

// Delete removes a user locally.
func (m *Module) Delete(id int64) {
	m.commit("delete", func() { m.users.Delete(id) })
}

// Clear resets users and action statuses.
func (m *Module) Clear() {
	m.commit("clear", m.users.Clear)
	m.meta.Reset()
}

// Get returns the user with the given id.
func (m *Module) Get(id int64) (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users.Get(id)
}

// List returns all users ordered by display name, case-insensitively.
func (m *Module) List() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users.Sorted(func(a, b User) int {
		return cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
	})
}

// Status returns the state of a tracked action.
func (m *Module) Status(a Action) meta.State {
	return m.meta.Get(a)
}

// Validate checks the collection invariants.
func (m *Module) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users.Validate()
}

// Snapshot returns a JSON-encodable view of the module.
func (m *Module) Snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return struct {
		IDList  []int64               `json:"id_list"`
		Entries []User                `json:"entries"`
		Meta    map[Action]meta.State `json:"meta"`
	}{m.users.IDs(), m.users.Items(), m.meta.Snapshot()}
}

func (m *Module) commit(mutation string, fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.Committed(mutation)
}
