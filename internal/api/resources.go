package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jpalmerr/groupstate/modules/auth"
	"github.com/jpalmerr/groupstate/modules/currentgroup"
	"github.com/jpalmerr/groupstate/modules/invitations"
	"github.com/jpalmerr/groupstate/modules/users"
)

// Invitations implements invitations.API.
type Invitations struct{ c *Client }

// Users implements users.API.
type Users struct{ c *Client }

// Groups implements currentgroup.API.
type Groups struct{ c *Client }

// Auth implements auth.API.
type Auth struct{ c *Client }

var (
	_ invitations.API  = Invitations{}
	_ users.API        = Users{}
	_ currentgroup.API = Groups{}
	_ auth.API         = Auth{}
)

// Invitations returns the invitations resource.
func (c *Client) Invitations() Invitations { return Invitations{c} }

// Users returns the users resource.
func (c *Client) Users() Users { return Users{c} }

// Groups returns the groups resource.
func (c *Client) Groups() Groups { return Groups{c} }

// Auth returns the auth resource.
func (c *Client) Auth() Auth { return Auth{c} }

// ListByGroupID lists the invitations sent for a group.
func (r Invitations) ListByGroupID(ctx context.Context, groupID int64) ([]invitations.Invitation, error) {
	var out []invitations.Invitation
	q := url.Values{"group": {strconv.FormatInt(groupID, 10)}}
	if err := r.c.do(ctx, http.MethodGet, "/api/invitations/", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create sends an invitation.
func (r Invitations) Create(ctx context.Context, in invitations.CreateInput) (invitations.Invitation, error) {
	var out invitations.Invitation
	err := r.c.do(ctx, http.MethodPost, "/api/invitations/", nil, in, &out)
	return out, err
}

// Accept accepts the invitation identified by token.
func (r Invitations) Accept(ctx context.Context, token string) error {
	return r.c.do(ctx, http.MethodPost, "/api/invitations/"+url.PathEscape(token)+"/accept/", nil, nil, nil)
}

// List lists the users visible to the authenticated user.
func (r Users) List(ctx context.Context) ([]users.User, error) {
	var out []users.User
	if err := r.c.do(ctx, http.MethodGet, "/api/users/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get loads a group's details.
func (r Groups) Get(ctx context.Context, id int64) (currentgroup.Group, error) {
	var out currentgroup.Group
	err := r.c.do(ctx, http.MethodGet, "/api/groups/"+strconv.FormatInt(id, 10)+"/", nil, nil, &out)
	return out, err
}

// Status loads the authenticated user.
func (r Auth) Status(ctx context.Context) (auth.User, error) {
	var out auth.User
	err := r.c.do(ctx, http.MethodGet, "/api/auth/user/", nil, nil, &out)
	return out, err
}
