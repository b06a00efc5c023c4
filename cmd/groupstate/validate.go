package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/groupstate/config"
)

// validateCmd validates a config file without contacting the platform.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a groupstate configuration file without contacting the platform.

This command parses the YAML, expands environment variables, applies
GROUPSTATE_* overrides and validates all fields. It's useful for CI/CD
pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  groupstate validate -c groupstate.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	inspector := "disabled"
	if cfg.Inspector.Enabled {
		inspector = fmt.Sprintf("port %d", cfg.Inspector.Port)
	}
	refresh := "disabled"
	if !cfg.Refresh.Disabled {
		refresh = fmt.Sprintf("every %s, %d concurrent", cfg.Refresh.Interval.Duration(), cfg.Refresh.MaxConcurrency)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  API:       %s\n", cfg.API.BaseURL)
	fmt.Fprintf(out, "  Dev mode:  %t\n", cfg.Dev)
	fmt.Fprintf(out, "  Inspector: %s\n", inspector)
	fmt.Fprintf(out, "  Refresh:   %s\n", refresh)

	return nil
}
