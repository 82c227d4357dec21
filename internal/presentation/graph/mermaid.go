package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/langrun/pkg/domain"
)

// Overlay marks nodes on the rendered graph.
// Entries match a node by id or by display name, like tweak keys do.
type Overlay struct {
	Tweaked []string
}

// GenerateMermaid produces a Mermaid flowchart of the flow's components.
// Shapes follow the component role:
// - Inputs: [/Parallelogram/]
// - Outputs: ([Stadium])
// - Models and embeddings: [[Subroutine]]
// - Stores and memory: [(Cylinder)]
// - Default: [Rectangle]
func GenerateMermaid(f *domain.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	nodes := f.Nodes()
	for _, node := range nodes {
		opener, closer := shape(node.ComponentType)
		label := node.ID
		if node.DisplayName != "" && node.DisplayName != node.ID {
			label = fmt.Sprintf("%s <br/> %s", escape(node.DisplayName), node.ID)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, label, closer)
	}

	for _, e := range f.Edges() {
		if e.Source == "" || e.Target == "" {
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target))
	}

	if overlay != nil && len(overlay.Tweaked) > 0 {
		keys := make(map[string]bool, len(overlay.Tweaked))
		for _, k := range overlay.Tweaked {
			keys[k] = true
		}
		var marked []string
		for _, node := range nodes {
			if keys[node.ID] || (node.DisplayName != "" && keys[node.DisplayName]) {
				marked = append(marked, sanitizeMermaidID(node.ID))
			}
		}
		if len(marked) > 0 {
			sort.Strings(marked)
			sb.WriteString("\n    %% Overlay Styles\n")
			// Black text keeps the label readable on both themes.
			sb.WriteString("    classDef tweaked fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")
			fmt.Fprintf(&sb, "    class %s tweaked;\n", strings.Join(marked, ","))
		}
	}

	return sb.String()
}

func shape(componentType string) (string, string) {
	switch {
	case strings.HasSuffix(componentType, "Input"):
		return "[/", "/]"
	case strings.HasSuffix(componentType, "Output"):
		return "([", "])"
	case strings.Contains(componentType, "Model"), strings.Contains(componentType, "Embeddings"):
		return "[[", "]]"
	case strings.Contains(componentType, "Memory"), strings.Contains(componentType, "DB"),
		strings.Contains(componentType, "Store"):
		return "[(", ")]"
	}
	return "[", "]"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
