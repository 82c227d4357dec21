package flow

import "github.com/aretw0/langrun/pkg/domain"

// Redacted replaces the value of password fields in a Summary.
const Redacted = "********"

// NodeSummary describes one node and the fields a tweak can target.
type NodeSummary struct {
	ID            string         `json:"id"`
	ComponentType string         `json:"component_type,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	Fields        []domain.Field `json:"fields"`
}

// Summary is the introspection view of a flow.
type Summary struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Nodes       []NodeSummary `json:"nodes"`
	Edges       int           `json:"edges"`
}

// Summarize builds the introspection view of f. Literal values of password
// fields are replaced by Redacted; a load_from_db field keeps its variable name.
func Summarize(f *domain.Flow) Summary {
	nodes := f.Nodes()
	s := Summary{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Nodes:       make([]NodeSummary, 0, len(nodes)),
		Edges:       len(f.Edges()),
	}
	for _, n := range nodes {
		s.Nodes = append(s.Nodes, NodeSummary{
			ID:            n.ID,
			ComponentType: n.ComponentType,
			DisplayName:   n.DisplayName,
			Fields:        redact(Fields(n)),
		})
	}
	return s
}

func redact(fields []domain.Field) []domain.Field {
	for i, field := range fields {
		if field.Password && !field.LoadFromDB && field.Value != nil && field.Value != "" {
			fields[i].Value = Redacted
		}
	}
	return fields
}

// Skeleton returns a Tweaks mapping with one empty override set per node.
// It is the starting point callers fill in to customise a run.
func Skeleton(f *domain.Flow) domain.Tweaks {
	nodes := f.Nodes()
	t := make(domain.Tweaks, len(nodes))
	for _, n := range nodes {
		t[n.ID] = map[string]any{}
	}
	return t
}
