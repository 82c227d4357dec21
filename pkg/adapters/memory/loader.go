package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
)

// Loader implements ports.FlowLoader over flows held in memory.
type Loader struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewLoader parses the given raw documents (JSON or YAML) keyed by flow name.
func NewLoader(docs map[string]string) (*Loader, error) {
	l := &Loader{flows: make(map[string]*domain.Flow, len(docs))}
	for name, doc := range docs {
		f, err := flow.Parse([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", name, err)
		}
		if f.Name == "" {
			f.Name = name
		}
		l.flows[name] = f
	}
	return l, nil
}

// NewFromFlows creates a Loader from already parsed flows, keyed by their name.
func NewFromFlows(flows ...*domain.Flow) *Loader {
	l := &Loader{flows: make(map[string]*domain.Flow, len(flows))}
	for _, f := range flows {
		l.flows[f.Name] = f
	}
	return l
}

// Load returns a copy of the named flow.
func (l *Loader) Load(ctx context.Context, name string) (*domain.Flow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, ok := l.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, name)
	}
	return flow.Clone(f), nil
}

// List returns the flow names, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.flows))
	for name := range l.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
