package domain

import "sort"

// Template field types with special tweak semantics.
const (
	FieldTypeNestedDict = "NestedDict"
	FieldTypeFile       = "file"
	FieldTypeCode       = "code"
)

// Flow is a decoded Langflow document.
// Doc holds the whole document so that fields langrun does not model survive
// a load/tweak/upload round trip.
type Flow struct {
	ID          string
	Name        string
	Description string
	Doc         map[string]any
}

// Graph returns the object holding "nodes" and "edges".
// Exports nest it under "data"; bare graphs keep it at the top level.
func (f *Flow) Graph() map[string]any {
	if data, ok := f.Doc["data"].(map[string]any); ok {
		return data
	}
	return f.Doc
}

// Nodes returns a view over every component instance of the graph.
// Templates are shared with Doc, so writes through Node.Template change the flow.
func (f *Flow) Nodes() []Node {
	raw, _ := f.Graph()["nodes"].([]any)
	nodes := make([]Node, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		nodes = append(nodes, NewNode(m))
	}
	return nodes
}

// Edges returns the connections between nodes.
func (f *Flow) Edges() []Edge {
	raw, _ := f.Graph()["edges"].([]any)
	edges := make([]Edge, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := Edge{}
		e.ID, _ = m["id"].(string)
		e.Source, _ = m["source"].(string)
		e.Target, _ = m["target"].(string)
		edges = append(edges, e)
	}
	return edges
}

// Node is one component instance ("ChatInput-5Jlkw", "AstraDB-uzyaj", ...).
type Node struct {
	ID            string
	ComponentType string
	DisplayName   string
	Template      map[string]any
	Raw           map[string]any
}

// NewNode builds a Node view over a decoded node object.
func NewNode(raw map[string]any) Node {
	n := Node{Raw: raw}
	n.ID, _ = raw["id"].(string)

	data, _ := raw["data"].(map[string]any)
	if data == nil {
		return n
	}
	n.ComponentType, _ = data["type"].(string)
	if inner, ok := data["node"].(map[string]any); ok {
		n.DisplayName, _ = inner["display_name"].(string)
		n.Template, _ = inner["template"].(map[string]any)
	}
	return n
}

// FieldNames returns the template entries that describe fields, sorted.
// Metadata entries such as "_type" are plain strings and are skipped.
func (n Node) FieldNames() []string {
	names := make([]string, 0, len(n.Template))
	for name, v := range n.Template {
		if _, ok := v.(map[string]any); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Field is the typed projection of a template entry.
type Field struct {
	Name        string `json:"name" mapstructure:"name"`
	DisplayName string `json:"display_name,omitempty" mapstructure:"display_name"`
	Type        string `json:"type" mapstructure:"type"`
	Value       any    `json:"value,omitempty" mapstructure:"value"`
	FilePath    string `json:"file_path,omitempty" mapstructure:"file_path"`
	LoadFromDB  bool   `json:"load_from_db,omitempty" mapstructure:"load_from_db"`
	Required    bool   `json:"required,omitempty" mapstructure:"required"`
	Show        bool   `json:"show,omitempty" mapstructure:"show"`
	Advanced    bool   `json:"advanced,omitempty" mapstructure:"advanced"`
	Password    bool   `json:"password,omitempty" mapstructure:"password"`
}

// Edge connects an output of Source to an input of Target.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}
