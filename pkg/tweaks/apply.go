package tweaks

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Option configures Apply.
type Option func(*applier)

// WithLogger sets the logger used for skipped tweaks.
func WithLogger(logger *slog.Logger) Option {
	return func(a *applier) {
		a.logger = logger
	}
}

// WithStrict makes unknown node keys an error instead of a warning.
func WithStrict(strict bool) Option {
	return func(a *applier) {
		a.strict = strict
	}
}

// WithObserver registers a callback invoked for every field written.
func WithObserver(fn func(nodeID, field string)) Option {
	return func(a *applier) {
		a.observe = fn
	}
}

type applier struct {
	logger  *slog.Logger
	strict  bool
	observe func(nodeID, field string)
}

// Apply writes t into the templates of f in place and returns the number of
// fields written. t itself is never modified. Callers that must keep the
// original document should pass a flow.Clone.
func Apply(f *domain.Flow, t domain.Tweaks, opts ...Option) (int, error) {
	a := &applier{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if len(t) == 0 {
		return 0, nil
	}

	nodes := f.Nodes()
	byID := make(map[string]domain.Node, len(nodes))
	byName := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		// On a display name shared by several nodes the last one wins, as in Langflow.
		if n.DisplayName != "" {
			byName[n.DisplayName] = n
		}
	}

	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0
	global := make(map[string]any)
	for _, key := range keys {
		fields, ok := domain.AsFieldMap(t[key])
		if !ok {
			global[key] = t[key]
			continue
		}

		node, found := byID[key]
		if !found {
			node, found = byName[key]
		}
		if !found {
			if a.strict {
				return total, fmt.Errorf("%w: %q", domain.ErrUnknownNode, key)
			}
			a.logger.Warn("Tweak references unknown node", "node", key)
			continue
		}

		n, err := a.applyNode(node, fields)
		total += n
		if err != nil {
			return total, err
		}
	}

	if len(global) > 0 {
		for _, node := range nodes {
			n, err := a.applyNode(node, global)
			total += n
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (a *applier) applyNode(node domain.Node, fields map[string]any) (int, error) {
	if node.Template == nil {
		a.logger.Warn("Node has no template, tweaks skipped", "node", node.ID)
		return 0, nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	changed := 0
	for _, name := range names {
		field, ok := node.Template[name].(map[string]any)
		if !ok {
			a.logger.Debug("Tweak field not in template", "node", node.ID, "field", name)
			continue
		}

		fieldType, _ := field["type"].(string)
		if name == "code" || fieldType == domain.FieldTypeCode {
			return changed, fmt.Errorf("%w: node %s", domain.ErrCodeTweak, node.ID)
		}

		writeField(field, fieldType, deepcopy.Copy(fields[name]))
		changed++
		if a.observe != nil {
			a.observe(node.ID, name)
		}
	}
	return changed, nil
}

func writeField(field map[string]any, fieldType string, value any) {
	if fieldType == domain.FieldTypeNestedDict {
		field["value"] = value
		return
	}

	if nested, ok := domain.AsFieldMap(value); ok {
		for k, v := range nested {
			if fieldType == domain.FieldTypeFile {
				k = "file_path"
			}
			field[k] = v
		}
		return
	}

	if fieldType == domain.FieldTypeFile {
		field["file_path"] = value
		return
	}
	field["value"] = value
}
