package main

import (
	"fmt"
	"os"

	"github.com/aretw0/langrun/internal/cli"
	"github.com/aretw0/langrun/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes flows to AI agents as MCP tools (run_flow, list_flows,
tweaks_skeleton, inspect_flow) and the langrun://flows resource.

Supported Transports:
- stdio (default): Standard Input/Output, for local process integration.
- sse: Server-Sent Events over HTTP, for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app, err := buildApp(cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Service, mcp.WithLogger(app.Logger))

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		switch transport {
		case "stdio":
			app.Logger.Info("Starting MCP server (stdio)")
			return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		case "sse":
			addr := fmt.Sprintf(":%d", port)
			return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port))
		default:
			return fmt.Errorf("unknown transport %q (use stdio or sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().Int("port", 8081, "Port for the sse transport")
}
