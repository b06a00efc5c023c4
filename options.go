package groupstate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/groupstate/module"
)

// storeConfig holds mutable state during Store construction.
type storeConfig struct {
	modules         []module.Module
	plugins         []Plugin
	logger          *slog.Logger
	strict          bool
	refreshLimit    int
	changeCallbacks []func(Change)
}

// Option is a function that configures a [Store] during construction.
//
// Options return an error if validation fails.
type Option func(*storeConfig) error

// WithModule registers a module. Can be called multiple times.
func WithModule(m module.Module) Option {
	return func(cfg *storeConfig) error {
		if m == nil {
			return errors.New("module must not be nil")
		}
		cfg.modules = append(cfg.modules, m)
		return nil
	}
}

// WithModules registers several modules. Equivalent to calling [WithModule]
// for each.
func WithModules(modules ...module.Module) Option {
	return func(cfg *storeConfig) error {
		for _, m := range modules {
			if m == nil {
				return errors.New("module must not be nil")
			}
		}
		cfg.modules = append(cfg.modules, modules...)
		return nil
	}
}

// WithPlugin installs a plugin. Plugins run once, after all modules are
// wired, in the order given.
func WithPlugin(p Plugin) Option {
	return func(cfg *storeConfig) error {
		if p == nil {
			return errors.New("plugin must not be nil")
		}
		cfg.plugins = append(cfg.plugins, p)
		return nil
	}
}

// WithLogger sets the logger for store events and plugin diagnostics.
//
// Defaults to slog.Default() if not specified.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStrict installs [StrictMode] when enabled is true. It is meant for
// development builds.
func WithStrict(enabled bool) Option {
	return func(cfg *storeConfig) error {
		cfg.strict = enabled
		return nil
	}
}

// WithRefreshLimit bounds how many modules [Store.Refresh] reloads at once.
//
// Defaults to no limit if not specified.
func WithRefreshLimit(n int) Option {
	return func(cfg *storeConfig) error {
		if n < 1 {
			return fmt.Errorf("refresh limit must be at least 1, got %d", n)
		}
		cfg.refreshLimit = n
		return nil
	}
}

// WithChangeCallback registers a function called for every published
// [Change].
//
// Callbacks run synchronously on the goroutine that changed state, in
// registration order, after subscribers are notified. Keep them fast. A
// panicking callback is recovered and logged.
func WithChangeCallback(fn func(Change)) Option {
	return func(cfg *storeConfig) error {
		if fn == nil {
			return errors.New("change callback must not be nil")
		}
		cfg.changeCallbacks = append(cfg.changeCallbacks, fn)
		return nil
	}
}
