// Package config provides YAML configuration parsing for the groupstate CLI.
//
// The CLI runs the state tree as a standalone process against a platform
// API, as an alternative to wiring [groupstate.App] programmatically.
//
// Example configuration:
//
//	api:
//	  base_url: https://karrot.world
//	  token: ${KARROT_TOKEN}
//	  timeout: 10s
//
//	dev: false
//
//	inspector:
//	  enabled: true
//	  port: 8080
//	  title: Karrot state
//
//	refresh:
//	  interval: 1m
//	  max_concurrency: 4
//
//	history_limit: 50
//
// A handful of settings can be overridden from the environment after the
// file is parsed: GROUPSTATE_API_URL, GROUPSTATE_API_TOKEN, GROUPSTATE_DEV
// and GROUPSTATE_INSPECTOR_PORT.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultInspectorPort  = 8080
	defaultRefresh        = time.Minute
	defaultMaxConcurrency = 4

	// minRefreshInterval keeps a misconfigured refresh loop from hammering
	// the platform API.
	minRefreshInterval = time.Second
	maxRefreshInterval = time.Hour
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// API configures the platform REST client.
	API APIConfig `yaml:"api"`

	// Dev enables strict mode: module invariants are checked after every
	// mutation and a violation panics.
	Dev bool `yaml:"dev"`

	// Inspector configures the read-only state inspector.
	Inspector InspectorConfig `yaml:"inspector"`

	// Refresh configures periodic reloading from the server.
	Refresh RefreshConfig `yaml:"refresh"`

	// HistoryLimit bounds the router's navigation history.
	// Zero uses the router default.
	HistoryLimit int `yaml:"history_limit"`
}

// APIConfig configures the platform API client.
type APIConfig struct {
	// BaseURL is the platform root, e.g. https://karrot.world.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Token is sent as "Authorization: Token <token>".
	// Supports environment variable substitution.
	Token string `yaml:"token"`

	// Timeout bounds each request. Must be at least 1s if specified.
	Timeout Duration `yaml:"timeout"`
}

// InspectorConfig configures the state inspector HTTP server.
type InspectorConfig struct {
	// Enabled starts the inspector with `groupstate serve`.
	Enabled bool `yaml:"enabled"`

	// Port defaults to 8080.
	Port int `yaml:"port"`

	// Title is the inspector page title.
	Title string `yaml:"title"`
}

// RefreshConfig configures the periodic refresher.
type RefreshConfig struct {
	// Disabled turns periodic refresh off.
	Disabled bool `yaml:"disabled"`

	// Interval is the time between refreshes. Defaults to 1m.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// MaxConcurrency bounds concurrent module refreshes. Defaults to 4.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// envOverrides holds settings read from the environment. Unset variables
// leave the pointer nil so they do not clobber the file.
type envOverrides struct {
	APIURL        *string `env:"GROUPSTATE_API_URL"`
	APIToken      *string `env:"GROUPSTATE_API_TOKEN"`
	Dev           *bool   `env:"GROUPSTATE_DEV"`
	InspectorPort *int    `env:"GROUPSTATE_INSPECTOR_PORT"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation and
// GROUPSTATE_* overrides are applied on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// FromEnv builds a configuration from GROUPSTATE_* variables alone.
func FromEnv() (*Config, error) {
	return Parse(nil)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in api.base_url, api.token and
// inspector.title, then GROUPSTATE_* overrides are applied. Defaults are
// filled in for the inspector port and the refresh settings.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Inspector.Port == 0 {
		cfg.Inspector.Port = defaultInspectorPort
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = Duration(defaultRefresh)
	}
	if cfg.Refresh.MaxConcurrency == 0 {
		cfg.Refresh.MaxConcurrency = defaultMaxConcurrency
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expand() error {
	fields := []struct {
		key string
		val *string
	}{
		{"api.base_url", &c.API.BaseURL},
		{"api.token", &c.API.Token},
		{"inspector.title", &c.Inspector.Title},
	}
	for _, f := range fields {
		expanded, err := expandEnvVars(*f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.val = expanded
	}
	return nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.APIURL != nil {
		c.API.BaseURL = *o.APIURL
	}
	if o.APIToken != nil {
		c.API.Token = *o.APIToken
	}
	if o.Dev != nil {
		c.Dev = *o.Dev
	}
	if o.InspectorPort != nil {
		c.Inspector.Port = *o.InspectorPort
	}
	return nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsedURL, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("api.base_url: scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("api.base_url: host is required")
	}

	if c.API.Timeout != 0 {
		if c.API.Timeout.Duration() < 0 {
			return fmt.Errorf("api.timeout cannot be negative, got %s", c.API.Timeout.Duration())
		}
		if c.API.Timeout.Duration() < time.Second {
			return fmt.Errorf("api.timeout must be at least 1s if specified, got %s", c.API.Timeout.Duration())
		}
	}

	if c.Inspector.Port < 1 || c.Inspector.Port > 65535 {
		return fmt.Errorf("inspector.port must be between 1 and 65535, got %d", c.Inspector.Port)
	}

	if c.Refresh.Interval.Duration() < minRefreshInterval {
		return fmt.Errorf("refresh.interval must be at least %s, got %s", minRefreshInterval, c.Refresh.Interval.Duration())
	}
	if c.Refresh.Interval.Duration() > maxRefreshInterval {
		return fmt.Errorf("refresh.interval must not exceed %s, got %s", maxRefreshInterval, c.Refresh.Interval.Duration())
	}
	if c.Refresh.MaxConcurrency < 0 {
		return fmt.Errorf("refresh.max_concurrency cannot be negative, got %d", c.Refresh.MaxConcurrency)
	}

	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit cannot be negative, got %d", c.HistoryLimit)
	}
	return nil
}
