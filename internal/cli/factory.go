package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/internal/config"
	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/internal/metrics"
	"github.com/aretw0/langrun/pkg/adapters/file"
	"github.com/aretw0/langrun/pkg/adapters/langflow"
	loamadapter "github.com/aretw0/langrun/pkg/adapters/loam"
	"github.com/aretw0/langrun/pkg/adapters/memory"
	"github.com/aretw0/langrun/pkg/adapters/postgres"
	redisstore "github.com/aretw0/langrun/pkg/adapters/redis"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/aretw0/langrun/pkg/persistence/middleware"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/aretw0/langrun/pkg/runner"
	"github.com/aretw0/langrun/pkg/session"
)

// App bundles everything a command needs, built from one Config.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *langrun.Engine
	Service  *runner.Service
	Sessions *session.Manager
	Metrics  *metrics.Metrics

	closers []func() error
}

// BuildOption adjusts how Build wires the App.
type BuildOption func(*buildOptions)

type buildOptions struct {
	executor ports.Executor
	store    ports.SessionStore
}

// WithExecutor replaces the Langflow client (dry runs, tests).
func WithExecutor(exec ports.Executor) BuildOption {
	return func(o *buildOptions) {
		o.executor = exec
	}
}

// WithStore replaces the configured session backend.
func WithStore(store ports.SessionStore) BuildOption {
	return func(o *buildOptions) {
		o.store = store
	}
}

// NewLogger builds the logger described by cfg, writing to w.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(w, level, cfg.LogFormat), nil
}

// Build wires the engine, run service, session manager and metrics from cfg.
// Callers must Close the App to release backend connections.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	exec := o.executor
	if exec == nil {
		client, err := NewExecutor(cfg.Langflow, logger)
		if err != nil {
			return nil, err
		}
		exec = client
	}

	engineOpts := []langrun.Option{
		langrun.WithExecutor(exec),
		langrun.WithLogger(logger),
		langrun.WithStrictTweaks(cfg.StrictTweaks),
		langrun.WithEnvAllowlist(cfg.EnvAllowlist...),
		langrun.WithLifecycleHooks(domain.ComposeHooks(app.Metrics.Hooks(), debugHooks(logger))),
	}
	if cfg.EnvFile != "" {
		engineOpts = append(engineOpts, langrun.WithEnvFile(cfg.EnvFile))
	}

	store := o.store
	var locker ports.DistributedLocker
	if store == nil {
		var closeStore func() error
		var err error
		store, locker, closeStore, err = OpenSessionStore(ctx, cfg.Sessions)
		if err != nil {
			return nil, err
		}
		if closeStore != nil {
			app.closers = append(app.closers, closeStore)
		}
	}
	if store != nil {
		managerOpts := []session.Option{session.WithLogger(logger)}
		if locker != nil {
			managerOpts = append(managerOpts, session.WithLocker(locker))
		}
		app.Sessions = session.NewManager(store, managerOpts...)
		engineOpts = append(engineOpts, langrun.WithSessionManager(app.Sessions))
	}

	engine, err := langrun.New(engineOpts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine

	serviceOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithEnvFallback(cfg.Server.EnvFallback),
	}
	if cfg.FlowsDir != "" {
		serviceOpts = append(serviceOpts, runner.WithLoader(flow.NewDirLoader(cfg.FlowsDir)))
	}
	if cfg.PresetsDir != "" {
		presets, err := loamadapter.Open(cfg.PresetsDir)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("open presets %s: %w", cfg.PresetsDir, err)
		}
		serviceOpts = append(serviceOpts, runner.WithPresets(presets))
	}
	app.Service = runner.NewService(engine, serviceOpts...)

	return app, nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewExecutor builds the Langflow client described by cfg.
func NewExecutor(cfg config.LangflowConfig, logger *slog.Logger) (*langflow.Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = langflow.DefaultBaseURL
	}
	opts := []langflow.Option{
		langflow.WithLogger(logger),
		langflow.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.APIKey != "" {
		opts = append(opts, langflow.WithAPIKey(cfg.APIKey))
	}
	if cfg.SkipUpsert {
		opts = append(opts, langflow.WithoutUpsert())
	}
	return langflow.New(baseURL, opts...)
}

// OpenSessionStore opens the configured backend and wraps it with the redaction
// and encryption middleware. It returns a nil store for the "none" backend.
func OpenSessionStore(ctx context.Context, cfg config.SessionsConfig) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	var (
		store   ports.SessionStore
		locker  ports.DistributedLocker
		closeFn func() error
	)

	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil, nil, nil
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Dir)
	case config.BackendRedis:
		var opts []redisstore.Option
		if cfg.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(cfg.TTL))
		}
		if cfg.RedisPrefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.RedisPrefix))
		}
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		if cfg.DistributedLock {
			locker = redisstore.NewLocker(rs.Client(), rs.Prefix())
		}
		store, closeFn = rs, rs.Close
	case config.BackendPostgres:
		var opts []postgres.Option
		if cfg.PostgresTable != "" {
			opts = append(opts, postgres.WithTable(cfg.PostgresTable))
		}
		ps, err := postgres.Connect(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		store, closeFn = ps, ps.Close
	default:
		return nil, nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}

	mws, err := storeMiddleware(cfg)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mws...), locker, closeFn, nil
}

// storeMiddleware redacts before encrypting, so masked text is what gets sealed.
func storeMiddleware(cfg config.SessionsConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		for _, p := range cfg.Redact {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewRedactMiddleware(cfg.Redact))
	}
	if cfg.EncryptionKey != "" {
		key, err := cfg.Key()
		if err != nil {
			return nil, err
		}
		fallbacks, err := cfg.FallbackKeyBytes()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: fallbacks,
		}))
	}
	return mws, nil
}
