package ports

import (
	"context"

	"github.com/aretw0/langrun/pkg/domain"
)

// Executor runs a flow whose tweaks and variables have already been applied.
// The input is forwarded exactly as the caller supplied it; input.Tweaks is a
// copy of the mapping already applied to flow, for executors that run a copy
// kept on their side instead of the prepared document.
type Executor interface {
	Execute(ctx context.Context, flow *domain.Flow, input domain.RunInput) (*domain.RunResponse, error)
}

// VariableResolver is implemented by executors that state whether fields
// still marked load_from_db after local resolution can be resolved on their
// side. Executors that do not implement it are assumed to resolve them.
type VariableResolver interface {
	ResolvesVariables() bool
}
