package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/internal/config"
	"github.com/aretw0/langrun/pkg/adapters/amqp"
	"github.com/aretw0/langrun/pkg/runner"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume run jobs from RabbitMQ",
	Long:  `Declares the langrun exchanges and queues, then runs each job once, publishing a result per job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, amqpOverrides(cmd))
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.Config.AMQP
		conn, err := amqp.Dial(cfg.URL, app.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		topology := topologyFor(cfg)
		if err := topology.Declare(conn.Channel()); err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		worker := amqp.NewWorker(app.Service, conn.Channel(), topology,
			amqp.WithPrefetch(cfg.Prefetch),
			amqp.WithLogger(app.Logger),
		)
		err = worker.Consume(ctx, conn.Channel())
		if errors.Is(err, context.Canceled) {
			app.Logger.Info("Worker stopped", "signal", ctx.Signal())
			return nil
		}
		return err
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <flow>",
	Short: "Publish a run job for the worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		amqpOverrides(cmd)(cfg)

		logger, err := cli.NewLogger(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		conn, err := amqp.Dial(cfg.AMQP.URL, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		input, _ := cmd.Flags().GetString("input")
		session, _ := cmd.Flags().GetString("session")
		fallback, _ := cmd.Flags().GetBool("fallback-to-env-vars")
		assignments, _ := cmd.Flags().GetStringArray("tweak")
		presets, _ := cmd.Flags().GetStringArray("preset")

		overrides, err := cli.RunOptions{Tweaks: assignments}.Overrides()
		if err != nil {
			return err
		}

		id, err := amqp.Enqueue(cmd.Context(), conn.Channel(), topologyFor(cfg.AMQP), runner.Request{
			Flow:              args[0],
			InputValue:        input,
			SessionID:         session,
			FallbackToEnvVars: fallback,
			Tweaks:            overrides,
			Presets:           presets,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func amqpOverrides(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if url, _ := cmd.Flags().GetString("amqp-url"); url != "" {
			cfg.AMQP.URL = url
		}
		if queue, _ := cmd.Flags().GetString("queue"); queue != "" {
			cfg.AMQP.Queue = queue
		}
	}
}

func topologyFor(cfg config.AMQPConfig) amqp.Topology {
	return amqp.Topology{
		Exchange:    cfg.Exchange,
		Queue:       cfg.Queue,
		ResultQueue: cfg.ResultQueue,
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(enqueueCmd)

	for _, c := range []*cobra.Command{workerCmd, enqueueCmd} {
		c.Flags().String("amqp-url", "", "RabbitMQ URL (default from LANGRUN_AMQP_URL)")
		c.Flags().String("queue", "", "Job queue (default langrun.runs)")
	}

	f := enqueueCmd.Flags()
	f.StringP("input", "i", "", "Input value sent to the flow")
	f.StringP("session", "s", "", "Session id; empty means no session")
	f.Bool("fallback-to-env-vars", false, "Ask the worker to resolve variable-backed fields from its environment (needs server.env_fallback)")
	f.StringArrayP("tweak", "t", nil, "Tweak assignment Node.field=value (repeatable)")
	f.StringArrayP("preset", "p", nil, "Named tweak preset (repeatable)")
}
