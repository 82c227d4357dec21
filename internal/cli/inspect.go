package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
)

// WriteSummary prints the nodes of a flow and the fields a tweak can target.
// Variable-backed fields are marked ($var), file fields (file).
func WriteSummary(w io.Writer, s flow.Summary) error {
	title := s.Name
	if title == "" {
		title = s.ID
	}
	fmt.Fprintf(w, "Flow: %s\n", title)
	if s.ID != "" && s.ID != title {
		fmt.Fprintf(w, "ID:   %s\n", s.ID)
	}
	if s.Description != "" {
		fmt.Fprintf(w, "%s\n", s.Description)
	}
	fmt.Fprintf(w, "%d nodes, %d edges\n\n", len(s.Nodes), s.Edges)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tCOMPONENT\tNAME\tFIELDS")
	for _, n := range s.Nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.ComponentType, n.DisplayName, fieldList(n.Fields))
	}
	return tw.Flush()
}

func fieldList(fields []domain.Field) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name == "code" || f.Type == domain.FieldTypeCode {
			continue
		}
		name := f.Name
		switch {
		case f.LoadFromDB:
			name += "($var)"
		case f.Type == domain.FieldTypeFile:
			name += "(file)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
