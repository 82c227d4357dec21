package main

import (
	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/pkg/adapters/dryrun"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/spf13/cobra"
)

var tweaksCmd = &cobra.Command{
	Use:   "tweaks <flow>",
	Short: "Print an empty tweaks mapping for a flow",
	Long:  `Prints one key per node, each an empty override set, ready to be filled in and passed with --tweaks.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, nil, cli.WithExecutor(dryrun.New()))
		if err != nil {
			return err
		}
		defer app.Close()

		f, err := cli.LoadFlow(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}
		return cli.WriteJSON(cmd.OutOrStdout(), flow.Skeleton(f))
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <flow>",
	Short: "List the nodes of a flow and their tweakable fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, nil, cli.WithExecutor(dryrun.New()))
		if err != nil {
			return err
		}
		defer app.Close()

		f, err := cli.LoadFlow(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}
		summary := flow.Summarize(f)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return cli.WriteJSON(cmd.OutOrStdout(), summary)
		}
		return cli.WriteSummary(cmd.OutOrStdout(), summary)
	},
}

func init() {
	rootCmd.AddCommand(tweaksCmd)
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "Print the summary as JSON")
}
