package langrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/adapters/langflow"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/aretw0/langrun/pkg/session"
	"github.com/aretw0/langrun/pkg/tweaks"
	"github.com/aretw0/langrun/pkg/variables"
	"github.com/google/uuid"
)

// Tweaks is the per-node override mapping applied before a run.
type Tweaks = domain.Tweaks

// RunInput is the set of values forwarded with a run.
type RunInput = domain.RunInput

// RunResponse is the executor's answer.
type RunResponse = domain.RunResponse

// Engine prepares flows and hands them to an Executor.
type Engine struct {
	executor     ports.Executor
	variables    ports.VariableStore
	sessions     *session.Manager
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	strictTweaks bool
	envFile      string
	lookupEnv    func(string) (string, bool)
	envAllowlist []string

	resolver *variables.Resolver
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithExecutor sets the executor. Without it, a Langflow client is built from
// LANGFLOW_BASE_URL and LANGFLOW_API_KEY.
func WithExecutor(exec ports.Executor) Option {
	return func(e *Engine) {
		e.executor = exec
	}
}

// WithVariableStore sets the store consulted before the environment for load_from_db fields.
func WithVariableStore(store ports.VariableStore) Option {
	return func(e *Engine) {
		e.variables = store
	}
}

// WithSessionManager records exchanges of runs that carry a session id.
func WithSessionManager(m *session.Manager) Option {
	return func(e *Engine) {
		e.sessions = m
	}
}

// WithSessionStore is a shortcut for WithSessionManager(session.NewManager(store)).
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessions = session.NewManager(store)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStrictTweaks makes tweak keys that match no node an error.
func WithStrictTweaks(strict bool) Option {
	return func(e *Engine) {
		e.strictTweaks = strict
	}
}

// WithEnvFile loads KEY=VALUE pairs into the environment when the engine is built.
// Variables already set keep their value.
func WithEnvFile(path string) Option {
	return func(e *Engine) {
		e.envFile = path
	}
}

// WithEnvLookup replaces os.LookupEnv for variable fallback.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(e *Engine) {
		e.lookupEnv = fn
	}
}

// WithEnvAllowlist limits environment fallback to the named variables.
// Surfaces that accept flows from remote callers use it so that a request
// cannot copy arbitrary process variables into a flow.
func WithEnvAllowlist(names ...string) Option {
	return func(e *Engine) {
		e.envAllowlist = names
	}
}

// New builds an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	if eng.envFile != "" {
		if err := variables.LoadEnvFile(eng.envFile); err != nil {
			return nil, err
		}
	}

	if eng.executor == nil {
		client, err := langflow.NewFromEnv(langflow.WithLogger(eng.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create langflow client: %w", err)
		}
		eng.executor = client
	}

	resolverOpts := []variables.Option{variables.WithLogger(eng.logger)}
	if eng.variables != nil {
		resolverOpts = append(resolverOpts, variables.WithStore(eng.variables))
	}
	if eng.lookupEnv != nil {
		resolverOpts = append(resolverOpts, variables.WithLookupEnv(eng.lookupEnv))
	}
	if len(eng.envAllowlist) > 0 {
		resolverOpts = append(resolverOpts, variables.WithEnvAllowlist(eng.envAllowlist...))
	}
	// Fields the engine cannot resolve are left for the executor, unless it
	// says it has nowhere to resolve them.
	if vr, ok := eng.executor.(ports.VariableResolver); ok && !vr.ResolvesVariables() {
		resolverOpts = append(resolverOpts, variables.WithRequired(true))
	}
	eng.resolver = variables.NewResolver(resolverOpts...)

	return eng, nil
}

// Prepare loads the flow and returns a copy with the tweaks and variables of
// in applied. The source flow and in.Tweaks are left untouched.
func (e *Engine) Prepare(ctx context.Context, source any, in RunInput) (*domain.Flow, error) {
	src, err := flow.Resolve(source)
	if err != nil {
		return nil, err
	}
	f := flow.Clone(src)

	applied, err := tweaks.Apply(f, in.Tweaks,
		tweaks.WithLogger(e.logger),
		tweaks.WithStrict(e.strictTweaks),
		tweaks.WithObserver(func(nodeID, field string) {
			if e.hooks.OnTweakApplied != nil {
				e.hooks.OnTweakApplied(ctx, &domain.TweakEvent{NodeID: nodeID, Field: field})
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("apply tweaks: %w", err)
	}

	resolved, err := e.resolver.Resolve(ctx, f, in.FallbackToEnvVars)
	if err != nil {
		return nil, fmt.Errorf("resolve variables: %w", err)
	}

	e.logger.Debug("Flow prepared", "flow", f.Name, "tweaks", applied, "variables", resolved)
	return f, nil
}

// Run prepares the flow and executes it. When in.SessionID is set and a
// session manager is configured, the exchange is recorded and concurrent runs
// of the same session are serialised.
func (e *Engine) Run(ctx context.Context, source any, in RunInput) (*RunResponse, error) {
	f, err := e.Prepare(ctx, source, in)
	if err != nil {
		return nil, err
	}

	forward := in
	forward.Tweaks = tweaks.Clone(in.Tweaks)
	if forward.InputType == "" {
		forward.InputType = domain.InputTypeChat
	}
	if forward.OutputType == "" {
		forward.OutputType = domain.OutputTypeChat
	}

	event := &domain.RunEvent{
		RunID:     uuid.NewString(),
		FlowID:    f.ID,
		FlowName:  f.Name,
		SessionID: in.SessionID,
		StartedAt: time.Now(),
	}
	logger := e.logger.With("run_id", event.RunID, "flow", f.Name)
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, event)
	}
	logger.Info("Run started", "session_id", in.SessionID)

	resp, err := e.execute(ctx, f, forward, event.RunID)

	event.Duration = time.Since(event.StartedAt)
	event.Err = err
	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, event)
	}
	if err != nil {
		logger.Error("Run failed", "err", err, "duration", event.Duration)
		return nil, fmt.Errorf("run flow %s: %w", f.Name, err)
	}
	logger.Info("Run finished", "duration", event.Duration)
	return resp, nil
}

func (e *Engine) execute(ctx context.Context, f *domain.Flow, in RunInput, runID string) (*RunResponse, error) {
	if e.sessions == nil || in.SessionID == "" {
		return e.executor.Execute(ctx, f, in)
	}

	var resp *RunResponse
	_, err := e.sessions.Update(ctx, in.SessionID, f.ID, func(ctx context.Context, s *domain.Session) error {
		var err error
		resp, err = e.executor.Execute(ctx, f, in)
		if err != nil {
			return err
		}
		s.Append(domain.Exchange{
			RunID:  runID,
			Input:  in.InputValue,
			Output: resp.FirstText(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Executor returns the executor runs are sent to.
func (e *Engine) Executor() ports.Executor {
	return e.executor
}

// Sessions returns the session manager, or nil when sessions are not persisted.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// RunFlowFromJSON loads a flow (file path, inline JSON, bytes or *domain.Flow),
// applies in.Tweaks, resolves variables and executes it in one call.
func RunFlowFromJSON(ctx context.Context, source any, in RunInput, opts ...Option) (*RunResponse, error) {
	eng, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, source, in)
}
