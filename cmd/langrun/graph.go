package main

import (
	"fmt"

	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/internal/presentation/graph"
	"github.com/aretw0/langrun/pkg/adapters/dryrun"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow graph as a Mermaid diagram",
	Long: `Prints a Mermaid flowchart of the flow's components and their connections.
Nodes targeted by --tweaks or --tweak are highlighted.`,
	Args: cobra.ExactArgs(1),
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

		tweaksFile, _ := cmd.Flags().GetString("tweaks")
		assignments, _ := cmd.Flags().GetStringArray("tweak")
		opts := cli.RunOptions{TweaksFile: tweaksFile, Tweaks: assignments}
		overrides, err := opts.Overrides()
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if len(overrides) > 0 {
			overlay = &graph.Overlay{Tweaked: overrides.NodeKeys()}
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(f, overlay))
		return err
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("tweaks", "", "Tweaks file (JSON or YAML) whose nodes are highlighted")
	graphCmd.Flags().StringArrayP("tweak", "t", nil, "Node.field=value assignment whose node is highlighted (repeatable)")
}
