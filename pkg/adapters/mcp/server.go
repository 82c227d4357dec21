// Package mcp exposes flows as Model Context Protocol tools and resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/aretw0/langrun/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowsURI lists the flows served.
const FlowsURI = "langrun://flows"

// Service is the part of runner.Service the MCP server needs.
type Service interface {
	Run(ctx context.Context, req runner.Request) (*domain.RunResponse, error)
	Flow(ctx context.Context, name string) (*domain.Flow, error)
	Flows(ctx context.Context) ([]string, error)
}

// RunFlowArgs are the arguments of the run_flow tool.
type RunFlowArgs struct {
	Flow              string         `json:"flow"`
	InputValue        string         `json:"input_value"`
	SessionID         string         `json:"session_id,omitempty"`
	FallbackToEnvVars bool           `json:"fallback_to_env_vars,omitempty"`
	Tweaks            map[string]any `json:"tweaks,omitempty"`
	Presets           []string       `json:"presets,omitempty"`
}

// RunFlowResult is the structured answer of run_flow.
type RunFlowResult struct {
	Text      string              `json:"text" jsonschema_description:"First text message produced by the flow"`
	SessionID string              `json:"session_id,omitempty"`
	Response  *domain.RunResponse `json:"response" jsonschema_description:"Full executor response"`
}

// FlowArgs names one flow.
type FlowArgs struct {
	Flow string `json:"flow"`
}

// FlowList is the answer of list_flows.
type FlowList struct {
	Flows []string `json:"flows"`
}

// Server wraps a Service and exposes it as an MCP server.
type Server struct {
	svc       Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an MCP server with the langrun tools and resources registered.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("langrun", strings.TrimSpace(langrun.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves JSON-RPC over the given streams until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_flow",
		mcp.WithDescription("Run a Langflow flow with optional per-node tweaks and return its output."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Name of the flow to run")),
		mcp.WithString("input_value", mcp.Description("Message sent to the flow's input component")),
		mcp.WithString("session_id", mcp.Description("Session to record the exchange under (optional)")),
		mcp.WithBoolean("fallback_to_env_vars", mcp.Description("Resolve variable-backed fields from the server environment; honoured only when the server enables env_fallback")),
		mcp.WithObject("tweaks", mcp.Description("Per-node field overrides keyed by node id or display name")),
		mcp.WithArray("presets", mcp.Description("Named tweak presets applied before the tweaks"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithOutputSchema[RunFlowResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunFlow))

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the flows that can be run."),
		mcp.WithOutputSchema[FlowList](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("tweaks_skeleton",
		mcp.WithDescription("Return an empty tweaks mapping for a flow: one key per node, each an empty override set."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Name of the flow")),
	), mcp.NewStructuredToolHandler(s.handleTweaksSkeleton))

	s.mcpServer.AddTool(mcp.NewTool("inspect_flow",
		mcp.WithDescription("Describe the nodes of a flow and the fields a tweak can target."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Name of the flow")),
		mcp.WithOutputSchema[flow.Summary](),
	), mcp.NewStructuredToolHandler(s.handleInspectFlow))
}

func (s *Server) handleRunFlow(ctx context.Context, request mcp.CallToolRequest, args RunFlowArgs) (RunFlowResult, error) {
	resp, err := s.svc.Run(ctx, runner.Request{
		Flow:              args.Flow,
		InputValue:        args.InputValue,
		SessionID:         args.SessionID,
		FallbackToEnvVars: args.FallbackToEnvVars,
		Tweaks:            args.Tweaks,
		Presets:           args.Presets,
	})
	if err != nil {
		s.logger.Warn("MCP run_flow failed", "flow", args.Flow, "err", err)
		return RunFlowResult{}, fmt.Errorf("run failed: %w", err)
	}
	return RunFlowResult{
		Text:      resp.FirstText(),
		SessionID: resp.SessionID,
		Response:  resp,
	}, nil
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (FlowList, error) {
	names, err := s.svc.Flows(ctx)
	if err != nil {
		return FlowList{}, fmt.Errorf("list flows: %w", err)
	}
	return FlowList{Flows: names}, nil
}

func (s *Server) handleTweaksSkeleton(ctx context.Context, request mcp.CallToolRequest, args FlowArgs) (domain.Tweaks, error) {
	f, err := s.svc.Flow(ctx, args.Flow)
	if err != nil {
		return nil, err
	}
	return flow.Skeleton(f), nil
}

func (s *Server) handleInspectFlow(ctx context.Context, request mcp.CallToolRequest, args FlowArgs) (flow.Summary, error) {
	f, err := s.svc.Flow(ctx, args.Flow)
	if err != nil {
		return flow.Summary{}, err
	}
	return flow.Summarize(f), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Available flows",
		mcp.WithResourceDescription("Names of the flows that can be run"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.svc.Flows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		return jsonContents(FlowsURI, FlowList{Flows: names})
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(FlowsURI+"/{name}", "Flow summary",
		mcp.WithTemplateDescription("Nodes and tweakable fields of one flow"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		name := strings.TrimPrefix(request.Params.URI, FlowsURI+"/")
		f, err := s.svc.Flow(ctx, name)
		if err != nil {
			return nil, err
		}
		return jsonContents(request.Params.URI, flow.Summarize(f))
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
