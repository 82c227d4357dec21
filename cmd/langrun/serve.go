package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/internal/config"
	"github.com/aretw0/langrun/internal/presentation/tui"
	httpadapter "github.com/aretw0/langrun/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves POST /run, POST /ask, flow introspection and session endpoints, validated against the embedded OpenAPI document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		askFlow, _ := cmd.Flags().GetString("ask-flow")
		app, err := buildApp(cmd, func(cfg *config.Config) {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if askFlow != "" {
				cfg.Server.AskFlow = askFlow
			}
		})
		if err != nil {
			return err
		}
		defer app.Close()

		opts := []httpadapter.Option{
			httpadapter.WithLogger(app.Logger),
			httpadapter.WithMetrics(app.Metrics.Handler()),
		}
		if app.Sessions != nil {
			opts = append(opts, httpadapter.WithSessions(app.Sessions.Store()))
		}
		if app.Config.Server.AskFlow != "" {
			opts = append(opts, httpadapter.WithAskFlow(app.Config.Server.AskFlow))
		}
		handler, err := httpadapter.NewHandler(app.Service, opts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              app.Config.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.ListenAndServe()
		}()
		tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(langrun.Version), "listening on "+srv.Addr)
		app.Logger.Info("HTTP server started", "addr", srv.Addr, "flows_dir", app.Config.FlowsDir)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			app.Logger.Info("Shutting down", "signal", ctx.Signal())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete in %v: %w", app.Config.Server.ShutdownTimeout, err)
			}
			app.Logger.Info("HTTP server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().String("ask-flow", "", "Named flow answering POST /ask")
}
