package groupstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/groupstate/dashboard"
	"github.com/jpalmerr/groupstate/internal/api"
	"github.com/jpalmerr/groupstate/internal/inspector"
	"github.com/jpalmerr/groupstate/internal/refresher"
	"github.com/jpalmerr/groupstate/module"
	"github.com/jpalmerr/groupstate/modules/auth"
	"github.com/jpalmerr/groupstate/modules/currentgroup"
	"github.com/jpalmerr/groupstate/modules/invitations"
	"github.com/jpalmerr/groupstate/modules/router"
	"github.com/jpalmerr/groupstate/modules/toasts"
	"github.com/jpalmerr/groupstate/modules/users"
)

const (
	defaultRefreshInterval    = time.Minute
	defaultRefreshConcurrency = 4
	defaultInspectorPort      = 8080
	toastPruneInterval        = time.Second
)

// AppConfig configures an [App].
type AppConfig struct {
	// APIBaseURL is the platform root, e.g. "https://karrot.world". Required.
	APIBaseURL string

	// APIToken authenticates API requests. Optional.
	APIToken string

	// APITimeout bounds each API request. Zero uses the client default.
	APITimeout time.Duration

	// Dev enables strict mode.
	Dev bool

	// Inspector configures the read-only state inspector.
	Inspector InspectorConfig

	// RefreshInterval is how often list modules reload from the server.
	// Zero uses one minute; negative disables periodic refresh.
	RefreshInterval time.Duration

	// RefreshConcurrency bounds concurrent refreshes. Zero uses 4.
	RefreshConcurrency int

	// HistoryLimit bounds the router history. Zero uses the router default.
	HistoryLimit int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// InspectorConfig configures the state inspector.
type InspectorConfig struct {
	Enabled bool
	Port    int
	Title   string
}

// App is the composition root: it builds the API client, every feature
// module with its collaborators, and the [Store] that composes them.
//
// The typical lifecycle is:
//
//	app, err := groupstate.NewApp(cfg)
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//
//	if err := app.Bootstrap(ctx); err != nil {
//	    return err
//	}
//	return app.Start(ctx) // blocks until ctx is cancelled
type App struct {
	cfg    AppConfig
	logger *slog.Logger
	client *api.Client
	store  *Store

	auth         *auth.Module
	currentGroup *currentgroup.Module
	users        *users.Module
	invitations  *invitations.Module
	toasts       *toasts.Module
	router       *router.Module

	mu      sync.Mutex
	started bool
}

// NewApp wires an [App] from cfg. opts are passed to [New] after the app's
// own options, so they may add plugins, callbacks or override the logger.
func NewApp(cfg AppConfig, opts ...Option) (*App, error) {
	if cfg.APIBaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if cfg.Inspector.Enabled && (cfg.Inspector.Port < 0 || cfg.Inspector.Port > 65535) {
		return nil, fmt.Errorf("inspector port must be between 0 and 65535, got %d", cfg.Inspector.Port)
	}
	if cfg.Inspector.Port == 0 {
		cfg.Inspector.Port = defaultInspectorPort
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = defaultRefreshConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := api.NewClient(cfg.APIBaseURL,
		api.WithToken(cfg.APIToken),
		api.WithTimeout(cfg.APITimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, client: client}
	a.currentGroup = currentgroup.New(client.Groups())
	a.users = users.New(client.Users())
	a.auth = auth.New(client.Auth(), a.currentGroup)
	a.toasts = toasts.New(logger)
	a.router = router.New(logger, router.WithHistoryLimit(cfg.HistoryLimit))

	a.invitations, err = invitations.New(invitations.Deps{
		API:          client.Invitations(),
		CurrentGroup: a.currentGroup,
		Users:        a.users,
		Auth:         a.auth,
		Toasts:       a.toasts,
		Router:       a.router,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	storeOpts := []Option{
		WithModules(a.auth, a.currentGroup, a.users, a.invitations, a.toasts, a.router),
		WithLogger(logger),
		WithStrict(cfg.Dev),
		WithRefreshLimit(cfg.RefreshConcurrency),
	}
	a.store, err = New(append(storeOpts, opts...)...)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.logger = a.store.Logger()

	return a, nil
}

// Bootstrap loads the initial state: the authenticated user (which selects
// the user's current group), then users and invitations concurrently.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.auth.Refresh(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.users.Fetch(ctx) })
	g.Go(func() error { return a.invitations.Refresh(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	a.logger.Info("state bootstrapped",
		"users", len(a.users.List()),
		"invitations", len(a.invitations.IDs()),
	)
	return nil
}

// Start runs the periodic refresher and, if enabled, the state inspector.
//
// Start blocks until ctx is cancelled and returns nil on graceful shutdown.
// It returns an error if the inspector fails to bind or if the app was
// already started.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errors.New("app already started")
	}
	a.started = true
	a.mu.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	var wg sync.WaitGroup
	var scheduler *refresher.Scheduler
	if a.cfg.RefreshInterval > 0 {
		scheduler = refresher.NewScheduler(a.refreshTargets(), a.cfg.RefreshInterval, a.cfg.RefreshConcurrency, a.logger)
		scheduler.Start(ctx)
		a.logger.Info("refresh configured", "interval", a.cfg.RefreshInterval.String())

		wg.Add(1)
		go func() {
			defer wg.Done()
			for result := range scheduler.Results() {
				attrs := []any{
					"module", result.Name,
					"latency_ms", result.Duration.Milliseconds(),
				}
				if result.Err != nil {
					a.logger.Warn("refresh failed", append(attrs, "error", result.Err.Error())...)
				} else {
					a.logger.Debug("refresh completed", attrs...)
				}
			}
		}()
	}

	cleanup := func() {
		if scheduler != nil {
			scheduler.Stop()
		}
		wg.Wait()
	}

	if a.cfg.Inspector.Enabled {
		srv := inspector.NewServer(a.store, a.store, a.cfg.Inspector.Port, dashboard.Assets, a.cfg.Inspector.Title, a.logger)
		if err := srv.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start inspector: %w", err)
		}
		a.logger.Info("inspector available", "url", fmt.Sprintf("http://localhost:%d", a.cfg.Inspector.Port))
	}

	<-ctx.Done()
	cleanup()
	a.logger.Info("groupstate stopped")
	return nil
}

// refreshTargets lists every registered module that can refresh. Toasts
// only prune expired entries, so they run on a short fixed interval.
func (a *App) refreshTargets() []refresher.Target {
	var targets []refresher.Target
	for _, name := range a.store.Names() {
		m, _ := a.store.Module(name)
		r, ok := m.(module.Refresher)
		if !ok {
			continue
		}
		t := refresher.Target{Name: name, Refresher: r}
		if name == toasts.Name {
			t.Interval = toastPruneInterval
		}
		targets = append(targets, t)
	}
	return targets
}

// Close releases the API client's idle connections.
func (a *App) Close() {
	a.client.Close()
}

// Store returns the composed store.
func (a *App) Store() *Store { return a.store }

// Auth returns the auth module.
func (a *App) Auth() *auth.Module { return a.auth }

// CurrentGroup returns the current group module.
func (a *App) CurrentGroup() *currentgroup.Module { return a.currentGroup }

// Users returns the users module.
func (a *App) Users() *users.Module { return a.users }

// Invitations returns the invitations module.
func (a *App) Invitations() *invitations.Module { return a.invitations }

// Toasts returns the toasts module.
func (a *App) Toasts() *toasts.Module { return a.toasts }

// Router returns the router module.
func (a *App) Router() *router.Module { return a.router }
