// Package api provides the HTTP data-access layer used by the feature
// modules.
//
// [Client] wraps net/http with per-request timeouts, token authentication,
// a correlation id on every request and a size-limited JSON body codec.
// Resource adapters ([Invitations], [Users], [Groups], [Auth]) implement the
// API interfaces declared by the modules packages, so modules never import
// this package.
//
// Non-2xx responses are returned as [*Error] and match [ErrUnauthorized],
// [ErrForbidden] and [ErrNotFound] through errors.Is.
package api
