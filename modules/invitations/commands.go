package invitations

import (
	"context"

	"github.com/jpalmerr/groupstate/module"
)

// Fetch loads the invitations sent for a group.
type Fetch struct{ GroupID int64 }

// Send invites an e-mail address to the current group.
type Send struct{ Email string }

// Accept accepts an invitation token.
type Accept struct{ Token string }

// Add inserts an invitation locally if it is not present yet.
type Add struct{ Invitation Invitation }

// Delete removes an invitation locally.
type Delete struct{ ID int64 }

// Clear resets the module.
type Clear struct{}

// Refresh re-fetches invitations for the current group.
type Refresh struct{}

func (Fetch) Target() module.Name   { return Name }
func (Send) Target() module.Name    { return Name }
func (Accept) Target() module.Name  { return Name }
func (Add) Target() module.Name     { return Name }
func (Delete) Target() module.Name  { return Name }
func (Clear) Target() module.Name   { return Name }
func (Refresh) Target() module.Name { return Name }

// Handle dispatches an invitations command.
func (m *Module) Handle(ctx context.Context, cmd module.Command) error {
	switch c := cmd.(type) {
	case Fetch:
		return m.Fetch(ctx, c.GroupID)
	case Send:
		return m.Send(ctx, c.Email)
	case Accept:
		return m.Accept(ctx, c.Token)
	case Add:
		m.Add(c.Invitation)
	case Delete:
		m.Delete(c.ID)
	case Clear:
		m.Clear()
	case Refresh:
		return m.Refresh(ctx)
	default:
		return module.UnknownCommand(Name, cmd)
	}
	return nil
}
