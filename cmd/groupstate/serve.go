package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/groupstate"
	"github.com/jpalmerr/groupstate/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd keeps the state tree in sync and serves the inspector.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync state and serve the inspector",
	Long: `Load the state tree from the platform API and keep it in sync.

The process will:
  - Load configuration from the specified YAML file
  - Fetch the logged-in user, their current group, users and invitations
  - Refresh those modules periodically
  - Serve the read-only state inspector if enabled

The process runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  groupstate serve -c groupstate.yaml
  groupstate serve --config /etc/groupstate/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(slog.LevelInfo)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"api", cfg.API.BaseURL,
		"dev", cfg.Dev,
		"inspector", cfg.Inspector.Enabled,
	)

	app, err := groupstate.NewApp(cfg.AppConfig(logger))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer app.Close()

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Bootstrap(ctx); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("app error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("app error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
