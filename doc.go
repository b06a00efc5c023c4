// Package groupstate provides the client-side state tree of a group
// collaboration platform: the authenticated user, the group being viewed,
// the users and invitations around it, and the notification and navigation
// collaborators that feature actions talk to.
//
// State is split into feature modules (see the modules/ packages). Each
// module owns one namespaced slice of state, exposes read-only getters and
// async actions, and reports every committed mutation and every action status
// transition through hooks. A [Store] composes modules, turns their hooks
// into a stream of [Change] events and routes typed commands.
//
// # Quick Start
//
// The [App] composition root wires everything against the platform's REST
// API:
//
//	app, err := groupstate.NewApp(groupstate.AppConfig{
//	    APIBaseURL: "https://karrot.world",
//	    APIToken:   os.Getenv("KARROT_TOKEN"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	if err := app.Bootstrap(ctx); err != nil {
//	    return err
//	}
//	for _, inv := range app.Invitations().List() {
//	    fmt.Println(inv.Email, inv.CreatedAt)
//	}
//
// # Commands
//
// Actions can be called directly on a module or dispatched through the
// store as typed commands:
//
//	err := app.Store().Dispatch(ctx, invitations.Accept{Token: token})
//
// # Observing Changes
//
// Subscribe to the change stream, or register a callback at construction:
//
//	st, err := groupstate.New(
//	    groupstate.WithModules(mods...),
//	    groupstate.WithChangeCallback(func(c groupstate.Change) {
//	        log.Printf("%s %s %s", c.Module, c.Mutation, c.Status)
//	    }),
//	)
//
// # Strict Mode
//
// [WithStrict] installs [StrictMode], which validates each module's
// invariants after every mutation and panics on violation. Enable it in
// development only.
package groupstate
