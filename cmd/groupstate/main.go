// Package main is the entry point for the groupstate CLI.
//
// groupstate can be embedded as a library or run as a standalone process
// that keeps the state tree in sync with a platform API. This CLI provides
// the standalone approach plus a few one-shot invitation commands.
//
// Usage:
//
//	groupstate serve -c config.yaml           # Sync state and serve the inspector
//	groupstate validate -c config.yaml        # Validate configuration
//	groupstate invitations list               # List the current group's invitations
//	groupstate invitations send ada@example.com
//	groupstate invitations accept <token>
//	groupstate version                        # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "groupstate",
	Short: "Client-side state for a group collaboration platform",
	Long: `groupstate keeps a client-side copy of a group collaboration platform's
state: the logged-in user, their current group, the group's users and its
pending invitations.

Quick start:
  1. Create a config file (groupstate.yaml)
  2. Run: groupstate serve -c groupstate.yaml
  3. Open http://localhost:8080 to inspect the live state

Example config:
  api:
    base_url: https://karrot.world
    token: ${KARROT_TOKEN}
  inspector:
    enabled: true
    port: 8080`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this groupstate binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "groupstate %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
