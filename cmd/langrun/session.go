package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/internal/config"
	"github.com/aretw0/langrun/pkg/adapters/dryrun"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage recorded sessions",
	Long:  `List, inspect, and remove the sessions stored by the configured session backend.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ids, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Sessions:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the exchanges recorded in a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		sess, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}
		return cli.WriteJSON(cmd.OutOrStdout(), sess)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		var errs []error
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
				continue
			}
			cli.PrintSystemMessage(cmd.OutOrStdout(), "Removed session '%s'", id)
		}
		return errors.Join(errs...)
	},
}

// openStore opens the configured session backend. A config without one
// falls back to the file store, where `run --session` records by default.
func openStore(cmd *cobra.Command) (ports.SessionStore, func() error, error) {
	app, err := buildApp(cmd, func(cfg *config.Config) {
		if cfg.Sessions.Backend == config.BackendNone {
			cfg.Sessions.Backend = config.BackendFile
		}
	}, cli.WithExecutor(dryrun.New()))
	if err != nil {
		return nil, nil, err
	}
	return app.Sessions.Store(), app.Close, nil
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
