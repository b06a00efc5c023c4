// Package invitations manages the invitations sent for the current group and
// the acceptance of invitation tokens.
//
// The module keeps raw invitations only. Its getters decorate each
// invitation with the inviting user at read time, so a change in the users
// module is reflected without touching this module's state.
package invitations

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpalmerr/groupstate/entity"
	"github.com/jpalmerr/groupstate/meta"
	"github.com/jpalmerr/groupstate/module"
	"github.com/jpalmerr/groupstate/modules/router"
	"github.com/jpalmerr/groupstate/modules/toasts"
	"github.com/jpalmerr/groupstate/modules/users"
)

// Name is the module namespace.
const Name module.Name = "invitations"

// Action names a tracked invitations action.
type Action string

const (
	ActionFetch  Action = "fetch"
	ActionSend   Action = "send"
	ActionAccept Action = "accept"
)

// Toast message keys.
const (
	MessageAcceptSuccess = "GROUP.INVITATION_ACCEPT_SUCCESS"
	MessageAcceptError   = "GROUP.INVITATION_ACCEPT_ERROR"
)

// ErrNoCurrentGroup is returned by [Module.Send] when no group is selected.
var ErrNoCurrentGroup = errors.New("invitations: no current group")

// Invitation is an invitation to join a group, as stored by the server.
type Invitation struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Group     int64     `json:"group"`
	InvitedBy int64     `json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// View is an invitation decorated with its inviter. Inviter is nil when the
// users module does not know the inviting user.
type View struct {
	Invitation
	Inviter *users.User `json:"inviter"`
}

// CreateInput is the payload for creating an invitation.
type CreateInput struct {
	Email string `json:"email"`
	Group int64  `json:"group"`
}

// API is the data-access collaborator for invitations.
type API interface {
	ListByGroupID(ctx context.Context, groupID int64) ([]Invitation, error)
	Create(ctx context.Context, in CreateInput) (Invitation, error)
	Accept(ctx context.Context, token string) error
}

// GroupReader exposes the current group id.
type GroupReader interface {
	ID() (int64, bool)
}

// UserReader resolves users by id.
type UserReader interface {
	Get(id int64) (users.User, bool)
}

// AuthRefresher reloads the authenticated user.
type AuthRefresher interface {
	Refresh(ctx context.Context) error
}

// Notifier shows a toast. Fire-and-forget.
type Notifier interface {
	Show(t toasts.Toast)
}

// Navigator navigates to a route. Fire-and-forget.
type Navigator interface {
	Push(r router.Route)
}

// Deps are the collaborators the module reads from or calls into. Every
// field is required.
type Deps struct {
	API          API
	CurrentGroup GroupReader
	Users        UserReader
	Auth         AuthRefresher
	Toasts       Notifier
	Router       Navigator
}

func (d Deps) validate() error {
	switch {
	case d.API == nil:
		return errors.New("invitations: API is required")
	case d.CurrentGroup == nil:
		return errors.New("invitations: CurrentGroup is required")
	case d.Users == nil:
		return errors.New("invitations: Users is required")
	case d.Auth == nil:
		return errors.New("invitations: Auth is required")
	case d.Toasts == nil:
		return errors.New("invitations: Toasts is required")
	case d.Router == nil:
		return errors.New("invitations: Router is required")
	}
	return nil
}

// Module owns the invitations slice of state.
type Module struct {
	module.Base

	deps        Deps
	mu          sync.RWMutex
	invitations *entity.Collection[int64, Invitation]
	meta        *meta.Tracker[Action]
}

// New creates the invitations module.
func New(deps Deps) (*Module, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	m := &Module{
		Base:        module.NewBase(Name),
		deps:        deps,
		invitations: entity.NewCollection(func(i Invitation) int64 { return i.ID }),
		meta:        meta.NewTracker(ActionFetch, ActionSend, ActionAccept),
	}
	module.Track(&m.Base, m.meta)
	return m, nil
}

// Fetch replaces local invitations with those sent for groupID.
//
// Concurrent fetches are not de-duplicated; whichever response arrives last
// is what the module holds.
func (m *Module) Fetch(ctx context.Context, groupID int64) error {
	return m.meta.Run(ctx, ActionFetch, func(ctx context.Context) error {
		list, err := m.deps.API.ListByGroupID(ctx, groupID)
		if err != nil {
			return fmt.Errorf("list invitations for group %d: %w", groupID, err)
		}
		m.commit("set", func() { m.invitations.Set(list) })
		return nil
	})
}

// Send invites email to the current group and appends the created
// invitation.
func (m *Module) Send(ctx context.Context, email string) error {
	return m.meta.Run(ctx, ActionSend, func(ctx context.Context) error {
		groupID, ok := m.deps.CurrentGroup.ID()
		if !ok {
			return ErrNoCurrentGroup
		}
		inv, err := m.deps.API.Create(ctx, CreateInput{Email: email, Group: groupID})
		if err != nil {
			return fmt.Errorf("create invitation: %w", err)
		}
		m.commit("append", func() { m.invitations.Append(inv) })
		return nil
	})
}

// Accept accepts the invitation identified by token.
//
// Accepting changes group membership, so on success the authenticated user
// is refreshed, a success toast is shown and the app navigates home. Any
// failure along the way (including the refresh) shows an error toast,
// navigates to the groups gallery and is returned.
func (m *Module) Accept(ctx context.Context, token string) error {
	return m.meta.Run(ctx, ActionAccept, func(ctx context.Context) error {
		err := m.accept(ctx, token)
		if err != nil {
			m.deps.Toasts.Show(toasts.Toast{
				Message: MessageAcceptError,
				Config:  toasts.Config{Type: toasts.TypeNegative},
			})
			m.deps.Router.Push(router.Named(router.RouteGroupsGallery))
			return err
		}
		m.deps.Toasts.Show(toasts.Toast{Message: MessageAcceptSuccess})
		m.deps.Router.Push(router.To("/"))
		return nil
	})
}

func (m *Module) accept(ctx context.Context, token string) error {
	if err := m.deps.API.Accept(ctx, token); err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	if err := m.deps.Auth.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after accept: %w", err)
	}
	return nil
}

// Add appends inv unless an invitation with the same id is already present.
func (m *Module) Add(inv Invitation) {
	m.mu.Lock()
	if m.invitations.Has(inv.ID) {
		m.mu.Unlock()
		return
	}
	m.invitations.Append(inv)
	m.mu.Unlock()
	m.Committed("append")
}

// Delete removes an invitation locally. No request is made.
func (m *Module) Delete(id int64) {
	m.commit("delete", func() { m.invitations.Delete(id) })
}

// Clear resets invitations and action statuses.
func (m *Module) Clear() {
	m.commit("clear", m.invitations.Clear)
	m.meta.Reset()
}

// Refresh re-fetches invitations for the current group. Without a current
// group it does nothing.
func (m *Module) Refresh(ctx context.Context) error {
	groupID, ok := m.deps.CurrentGroup.ID()
	if !ok {
		return nil
	}
	return m.Fetch(ctx, groupID)
}

// Get returns the invitation with the given id, decorated with its inviter.
func (m *Module) Get(id int64) (View, bool) {
	m.mu.RLock()
	inv, ok := m.invitations.Get(id)
	m.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	return m.enrich(inv), true
}

// List returns all invitations decorated with their inviters, newest first.
// Invitations created at the same instant keep their fetch order.
func (m *Module) List() []View {
	m.mu.RLock()
	items := m.invitations.Sorted(byCreatedAtDesc)
	m.mu.RUnlock()

	views := make([]View, len(items))
	for i, inv := range items {
		views[i] = m.enrich(inv)
	}
	return views
}

// IDs returns the invitation ids in fetch order.
func (m *Module) IDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invitations.IDs()
}

func (m *Module) enrich(inv Invitation) View {
	v := View{Invitation: inv}
	if u, ok := m.deps.Users.Get(inv.InvitedBy); ok {
		v.Inviter = &u
	}
	return v
}

func byCreatedAtDesc(a, b Invitation) int {
	return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
}

// Status returns the state of a tracked action.
func (m *Module) Status(a Action) meta.State {
	return m.meta.Get(a)
}

// Validate checks the collection invariants.
func (m *Module) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invitations.Validate()
}

// Snapshot returns a JSON-encodable view of the module.
func (m *Module) Snapshot() any {
	m.mu.RLock()
	ids := m.invitations.IDs()
	items := m.invitations.Sorted(byCreatedAtDesc)
	m.mu.RUnlock()

	entries := make([]View, len(items))
	for i, inv := range items {
		entries[i] = m.enrich(inv)
	}
	return struct {
		IDList  []int64               `json:"id_list"`
		Entries []View                `json:"entries"`
		Meta    map[Action]meta.State `json:"meta"`
	}{ids, entries, m.meta.Snapshot()}
}

func (m *Module) commit(mutation string, fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.Committed(mutation)
}
