package ports

import (
	"context"

	"github.com/aretw0/langrun/pkg/domain"
)

// FlowLoader resolves flows by name.
type FlowLoader interface {
	// Load returns the named flow, or domain.ErrFlowNotFound.
	Load(ctx context.Context, name string) (*domain.Flow, error)

	// List returns the names of every available flow.
	List(ctx context.Context) ([]string, error)
}

// PresetStore serves named Tweaks mappings.
type PresetStore interface {
	// Get returns the preset, or domain.ErrPresetNotFound.
	Get(ctx context.Context, name string) (domain.Tweaks, error)

	List(ctx context.Context) ([]string, error)
}

// VariableStore resolves the variables referenced by load_from_db fields.
type VariableStore interface {
	// Get returns the value, or domain.ErrVariableNotFound.
	Get(ctx context.Context, name string) (string, error)
}
