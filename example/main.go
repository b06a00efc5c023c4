package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/groupstate"
	"github.com/jpalmerr/groupstate/modules/invitations"
)

func main() {
	// start mock platform (see mock_server.go)
	go StartMockPlatform(":9999")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app, err := groupstate.NewApp(groupstate.AppConfig{
		APIBaseURL:      "http://localhost:9999",
		APIToken:        "demo",
		Dev:             true,
		Inspector:       groupstate.InspectorConfig{Enabled: true, Port: 8080, Title: "groupstate demo"},
		RefreshInterval: 15 * time.Second,
		Logger:          logger,
	}, groupstate.WithChangeCallback(func(c groupstate.Change) {
		if c.Kind == groupstate.KindMutation {
			logger.Info("mutation", "module", c.Module, "type", c.Mutation, "seq", c.Seq)
		}
	}))
	if err != nil {
		slog.Error("failed to create app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	// a failed accept shows a toast and navigates to the groups gallery
	if err := app.Store().Dispatch(ctx, invitations.Accept{Token: "expired"}); err != nil {
		cur, _ := app.Router().Current()
		logger.Info("accept failed as expected", "error", err, "route", cur.Path)
	}
	if err := app.Store().Dispatch(ctx, invitations.Send{Email: "cy@example.com"}); err != nil {
		logger.Error("send failed", "error", err)
	}

	fmt.Println()
	fmt.Println("  groupstate demo")
	fmt.Println()
	fmt.Println("  Inspector:   http://localhost:8080")
	fmt.Println("  Mock API:    http://localhost:9999")
	fmt.Println("  Invitations are refreshed every 15s; the mock adds one every 20-60s.")
	fmt.Println()
	fmt.Println("  Try: GROUPSTATE_API_URL=http://localhost:9999 go run ./cmd/groupstate invitations accept welcome")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := app.Start(ctx); err != nil {
		slog.Error("app error", "error", err)
		os.Exit(1)
	}
}
