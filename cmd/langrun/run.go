package main

import (
	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/internal/config"
	"github.com/aretw0/langrun/pkg/adapters/dryrun"
	"github.com/spf13/cobra"
)

var runOpts cli.RunOptions

var runCmd = &cobra.Command{
	Use:   "run <flow>",
	Short: "Run a flow once and print its output",
	Long: `Runs a flow file (or a flow from the flows directory) with the given input.

Tweaks are layered in order: presets, the --tweaks file, then each --tweak
assignment. A tweak key is a node id or display name; a value that is not an
object applies to every node carrying the field.`,
	Example: `  langrun run langflow.json --input message --fallback-to-env-vars
  langrun run rag --tweak "AstraDB-uzyaj.collection_name=docs" --session s1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		strict, _ := cmd.Flags().GetBool("strict")

		var opts []cli.BuildOption
		if dryRun {
			var dryOpts []dryrun.Option
			if strict {
				dryOpts = append(dryOpts, dryrun.WithStrictVariables())
			}
			opts = append(opts, cli.WithExecutor(dryrun.New(dryOpts...)))
		}
		app, err := buildApp(cmd, func(cfg *config.Config) {
			if envFile != "" {
				cfg.EnvFile = envFile
			}
			if cmd.Flags().Changed("strict") {
				cfg.StrictTweaks = strict
			}
			if runOpts.SessionID != "" && cfg.Sessions.Backend == config.BackendNone {
				cfg.Sessions.Backend = config.BackendFile
			}
		}, opts...)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		runOpts.Flow = args[0]
		return cli.Run(ctx, app, runOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runOpts.Input, "input", "i", "", "Input value sent to the flow")
	f.StringVarP(&runOpts.SessionID, "session", "s", "", "Session id; empty means no session")
	f.BoolVar(&runOpts.FallbackToEnvVars, "fallback-to-env-vars", false, "Resolve variable-backed fields from the environment")
	f.StringVar(&runOpts.TweaksFile, "tweaks", "", "Tweaks file (JSON or YAML)")
	f.StringArrayVarP(&runOpts.Tweaks, "tweak", "t", nil, "Tweak assignment Node.field=value (repeatable)")
	f.StringArrayVarP(&runOpts.Presets, "preset", "p", nil, "Named tweak preset (repeatable, applied in order)")
	f.StringVar(&runOpts.InputType, "input-type", "", "Input component type: chat, text, any (default chat)")
	f.StringVar(&runOpts.OutputType, "output-type", "", "Output component type: chat, text, any, debug (default chat)")
	f.StringVar(&runOpts.OutputComponent, "output-component", "", "Only return the output of this component")
	f.BoolVar(&runOpts.JSON, "json", false, "Print the full response as JSON")
	f.String("env-file", "", "KEY=VALUE file loaded before variables are resolved")
	f.Bool("dry-run", false, "Prepare the flow without executing it")
	f.Bool("strict", false, "Fail when a tweak key matches no node; with --dry-run, also when a variable cannot be resolved locally")
}
