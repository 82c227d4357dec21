// Package variables resolves template fields whose value is the name of a
// stored variable (load_from_db) into the variable's concrete value.
package variables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/joho/godotenv"
)

// Resolver fills variable-backed fields from a store and, optionally, the environment.
//
// A field whose variable is found nowhere is left as it is (value holds the
// variable name, load_from_db stays true), so an executor with its own
// variable store can resolve it. WithRequired turns such misses into errors.
type Resolver struct {
	store     ports.VariableStore
	lookupEnv func(string) (string, bool)
	allowEnv  map[string]bool
	required  bool
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore sets the primary variable store.
func WithStore(store ports.VariableStore) Option {
	return func(r *Resolver) {
		r.store = store
	}
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

// WithEnvAllowlist restricts environment fallback to the named variables.
// An empty list allows every variable.
func WithEnvAllowlist(names ...string) Option {
	return func(r *Resolver) {
		if len(names) == 0 {
			r.allowEnv = nil
			return
		}
		r.allowEnv = make(map[string]bool, len(names))
		for _, n := range names {
			r.allowEnv[n] = true
		}
	}
}

// WithRequired makes a variable that cannot be resolved locally an error.
func WithRequired(required bool) Option {
	return func(r *Resolver) {
		r.required = required
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver. Without a store only the environment is consulted.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		lookupEnv: os.LookupEnv,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve rewrites every load_from_db field of f in place and returns how many
// were resolved. The environment is only consulted when fallback is true.
func (r *Resolver) Resolve(ctx context.Context, f *domain.Flow, fallback bool) (int, error) {

	resolved := 0
	for _, node := range f.Nodes() {
		names := make([]string, 0, len(node.Template))
		for name := range node.Template {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			field, ok := node.Template[name].(map[string]any)
			if !ok || field["load_from_db"] != true {
				continue
			}
			variable, _ := field["value"].(string)
			if variable == "" {
				continue
			}

			value, err := r.lookup(ctx, variable, fallback)
			if errors.Is(err, domain.ErrVariableNotFound) && !r.required {
				r.logger.Debug("Variable left for the executor", "node", node.ID, "field", name, "variable", variable)
				continue
			}
			if err != nil {
				return resolved, fmt.Errorf("node %s field %s: %w", node.ID, name, err)
			}
			field["value"] = value
			field["load_from_db"] = false
			resolved++
			r.logger.Debug("Resolved variable", "node", node.ID, "field", name, "variable", variable)
		}
	}
	return resolved, nil
}

func (r *Resolver) lookup(ctx context.Context, name string, fallback bool) (string, error) {
	if r.store != nil {
		value, err := r.store.Get(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, domain.ErrVariableNotFound) {
			return "", err
		}
	}
	if fallback && r.envAllowed(name) {
		if value, ok := r.lookupEnv(name); ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrVariableNotFound, name)
}

func (r *Resolver) envAllowed(name string) bool {
	return r.allowEnv == nil || r.allowEnv[name]
}

// LoadEnvFile reads KEY=VALUE pairs into the process environment.
// Variables already set are left untouched.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ReadEnvFile parses an env file without touching the process environment.
func ReadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vars, nil
}
