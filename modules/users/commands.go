package users

import (
	"context"

	"github.com/jpalmerr/groupstate/module"
)

// Fetch loads all users.
type Fetch struct{}

// Update upserts one user locally.
type Update struct{ User User }

// Delete removes one user locally.
type Delete struct{ ID int64 }

func (Fetch) Target() module.Name  { return Name }
func (Update) Target() module.Name { return Name }
func (Delete) Target() module.Name { return Name }

// Handle dispatches a users command.
func (m *Module) Handle(ctx context.Context, cmd module.Command) error {
	switch c := cmd.(type) {
	case Fetch:
		return m.Fetch(ctx)
	case Update:
		m.Update(c.User)
		return nil
	case Delete:
		m.Delete(c.ID)
		return nil
	default:
		return module.UnknownCommand(Name, cmd)
	}
}
