package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/langrun/pkg/domain"
)

// Variables implements ports.VariableStore over an in-memory map.
type Variables struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewVariables creates a variable store seeded with vars.
func NewVariables(vars map[string]string) *Variables {
	v := &Variables{vars: make(map[string]string, len(vars))}
	for k, val := range vars {
		v.vars[k] = val
	}
	return v
}

// Get returns the value of a variable.
func (v *Variables) Get(ctx context.Context, name string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	val, ok := v.vars[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrVariableNotFound, name)
	}
	return val, nil
}

// Set stores or replaces a variable.
func (v *Variables) Set(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vars[name] = value
}
