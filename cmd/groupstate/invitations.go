package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/groupstate"
	"github.com/jpalmerr/groupstate/config"
	"github.com/jpalmerr/groupstate/modules/auth"
	"github.com/jpalmerr/groupstate/modules/currentgroup"
	"github.com/jpalmerr/groupstate/modules/invitations"
)

// invitationsCmd groups one-shot invitation commands. Each subcommand
// builds a fresh app, dispatches through its store and exits.
var invitationsCmd = &cobra.Command{
	Use:   "invitations",
	Short: "List, send and accept group invitations",
	Long: `One-shot invitation commands against the platform API.

Configuration comes from -c if given, otherwise from GROUPSTATE_API_URL and
GROUPSTATE_API_TOKEN.

Example:
  groupstate invitations list --json
  groupstate invitations send ada@example.com --group 5
  groupstate invitations accept 3f0c9c2a`,
}

var invitationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current group's invitations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runInvitationsList,
}

var invitationsSendCmd = &cobra.Command{
	Use:   "send EMAIL",
	Short: "Invite an email address to the current group",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvitationsSend,
}

var invitationsAcceptCmd = &cobra.Command{
	Use:   "accept TOKEN",
	Short: "Accept an invitation token",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvitationsAccept,
}

func init() {
	rootCmd.AddCommand(invitationsCmd)
	invitationsCmd.AddCommand(invitationsListCmd, invitationsSendCmd, invitationsAcceptCmd)

	invitationsCmd.PersistentFlags().StringP("config", "c", "", "path to config file (defaults to GROUPSTATE_* environment)")
	invitationsListCmd.Flags().Bool("json", false, "print invitations as JSON")
	invitationsSendCmd.Flags().Int64("group", 0, "group to invite to (defaults to the user's current group)")
}

// loadApp builds an app for a one-shot command: no inspector, no periodic
// refresh, warnings only on stderr.
func loadApp(cmd *cobra.Command) (*groupstate.App, error) {
	configFile, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appCfg := cfg.AppConfig(newLogger(slog.LevelWarn))
	appCfg.Inspector.Enabled = false
	appCfg.RefreshInterval = -1

	app, err := groupstate.NewApp(appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	return app, nil
}

func runInvitationsList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Bootstrap(cmd.Context()); err != nil {
		return err
	}
	list := app.Invitations().List()

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("encode invitations: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No invitations.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tINVITED BY\tCREATED")
	for _, inv := range list {
		inviter := "-"
		if inv.Inviter != nil {
			inviter = inv.Inviter.DisplayName
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", inv.ID, inv.Email, inviter, inv.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runInvitationsSend(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	store := app.Store()
	if err := store.Dispatch(ctx, auth.RefreshUser{}); err != nil {
		return err
	}
	if group, _ := cmd.Flags().GetInt64("group"); group != 0 {
		if err := store.Dispatch(ctx, currentgroup.Select{ID: group}); err != nil {
			return err
		}
	}
	if err := store.Dispatch(ctx, invitations.Send{Email: args[0]}); err != nil {
		return err
	}

	id, _ := app.CurrentGroup().ID()
	fmt.Fprintf(cmd.OutOrStdout(), "Invitation sent to %s (group %d)\n", args[0], id)
	return nil
}

func runInvitationsAccept(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store().Dispatch(cmd.Context(), invitations.Accept{Token: args[0]}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Invitation accepted.")
	if g, ok := app.CurrentGroup().Group(); ok {
		fmt.Fprintf(out, "  Current group: %s (%d)\n", g.Name, g.ID)
	}
	return nil
}
