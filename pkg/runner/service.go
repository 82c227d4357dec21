package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/aretw0/langrun/pkg/tweaks"
)

// Service turns validated Requests into engine runs. It is shared by the HTTP,
// MCP and queue adapters so that they resolve flows and presets the same way.
type Service struct {
	engine  *langrun.Engine
	loader  ports.FlowLoader
	presets ports.PresetStore
	logger  *slog.Logger

	envFallback bool
}

// Option configures a Service.
type Option func(*Service)

// WithLoader sets where named flows are looked up.
func WithLoader(loader ports.FlowLoader) Option {
	return func(s *Service) {
		s.loader = loader
	}
}

// WithPresets sets the preset store used by Request.Presets.
func WithPresets(presets ports.PresetStore) Option {
	return func(s *Service) {
		s.presets = presets
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEnvFallback lets requests resolve variable-backed fields from the
// process environment. It is off by default: remote callers must not be able
// to read the server's environment unless the operator allows it.
func WithEnvFallback(allowed bool) Option {
	return func(s *Service) {
		s.envFallback = allowed
	}
}

// NewService creates a Service around engine.
func NewService(engine *langrun.Engine, opts ...Option) *Service {
	s := &Service{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine used for runs.
func (s *Service) Engine() *langrun.Engine {
	return s.engine
}

// Loader returns the flow loader, or nil.
func (s *Service) Loader() ports.FlowLoader {
	return s.loader
}

// Presets returns the preset store, or nil.
func (s *Service) Presets() ports.PresetStore {
	return s.presets
}

// Run validates req, resolves its flow and tweaks, and executes it.
func (s *Service) Run(ctx context.Context, req Request) (*domain.RunResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sanitizer := NewSanitizer()
	input, err := sanitizer.Input(req.InputValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	f, err := s.resolveFlow(ctx, req)
	if err != nil {
		return nil, err
	}

	tw, err := s.Tweaks(ctx, req.Presets, req.Tweaks)
	if err != nil {
		return nil, err
	}
	tw, err = sanitizer.Tweaks(tw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	fallback := req.FallbackToEnvVars && s.envFallback
	if req.FallbackToEnvVars && !fallback {
		s.logger.Debug("Environment fallback disabled, ignoring request flag", "flow", f.Name)
	}

	s.logger.Debug("Dispatching run", "flow", f.Name, "session_id", req.SessionID, "presets", req.Presets)
	return s.engine.Run(ctx, f, domain.RunInput{
		InputValue:        input,
		InputType:         req.InputType,
		OutputType:        req.OutputType,
		OutputComponent:   req.OutputComponent,
		SessionID:         req.SessionID,
		FallbackToEnvVars: fallback,
		Tweaks:            tw,
	})
}

// Flow loads a named flow.
func (s *Service) Flow(ctx context.Context, name string) (*domain.Flow, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("%w: %s (no flow directory configured)", domain.ErrFlowNotFound, name)
	}
	return s.loader.Load(ctx, name)
}

// Flows lists the flows the loader knows.
func (s *Service) Flows(ctx context.Context) ([]string, error) {
	if s.loader == nil {
		return []string{}, nil
	}
	return s.loader.List(ctx)
}

// Tweaks layers the named presets in order, then the explicit overrides.
func (s *Service) Tweaks(ctx context.Context, presets []string, explicit domain.Tweaks) (domain.Tweaks, error) {
	if len(presets) == 0 {
		return explicit, nil
	}
	if s.presets == nil {
		return nil, fmt.Errorf("%w: %s (no preset store configured)", domain.ErrPresetNotFound, presets[0])
	}

	layers := make([]domain.Tweaks, 0, len(presets)+1)
	for _, name := range presets {
		t, err := s.presets.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		layers = append(layers, t)
	}
	layers = append(layers, explicit)
	return tweaks.Merge(layers...), nil
}

func (s *Service) resolveFlow(ctx context.Context, req Request) (*domain.Flow, error) {
	if len(req.FlowJSON) > 0 {
		return flow.Parse(req.FlowJSON)
	}
	return s.Flow(ctx, req.Flow)
}
