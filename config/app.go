package config

import (
	"log/slog"

	"github.com/jpalmerr/groupstate"
)

// AppConfig converts parsed configuration into the settings for
// [groupstate.NewApp].
func (c *Config) AppConfig(logger *slog.Logger) groupstate.AppConfig {
	interval := c.Refresh.Interval.Duration()
	if c.Refresh.Disabled {
		interval = -1
	}

	return groupstate.AppConfig{
		APIBaseURL: c.API.BaseURL,
		APIToken:   c.API.Token,
		APITimeout: c.API.Timeout.Duration(),
		Dev:        c.Dev,
		Inspector: groupstate.InspectorConfig{
			Enabled: c.Inspector.Enabled,
			Port:    c.Inspector.Port,
			Title:   c.Inspector.Title,
		},
		RefreshInterval:    interval,
		RefreshConcurrency: c.Refresh.MaxConcurrency,
		HistoryLimit:       c.HistoryLimit,
		Logger:             logger,
	}
}
