package main

import (
	"fmt"
	"os"

	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "langrun",
	Short: "Run Langflow flows with per-node tweaks",
	Long: `langrun loads a Langflow flow export, applies a tweaks mapping of per-node
field overrides, resolves variable-backed fields and hands the flow to a
Langflow server for execution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.ErrorMessage(err))
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./langrun.yaml when present)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("flows-dir", "", "Directory of named flows")
	flags.String("presets-dir", "", "Directory of tweak presets")
	flags.String("session-backend", "", "Session store: none, memory, file, redis, postgres")
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	override("flows-dir", &cfg.FlowsDir)
	override("presets-dir", &cfg.PresetsDir)
	override("session-backend", &cfg.Sessions.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildApp loads the configuration and wires the application.
func buildApp(cmd *cobra.Command, adjust func(*config.Config), opts ...cli.BuildOption) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	logger, err := cli.NewLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return cli.Build(cmd.Context(), cfg, logger, opts...)
}
