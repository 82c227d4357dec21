package tui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns a flow's text output into what is printed.
type Renderer func(string) (string, error)

// Plain returns the text unchanged with a trailing newline.
func Plain(s string) (string, error) {
	if strings.HasSuffix(s, "\n") {
		return s, nil
	}
	return s + "\n", nil
}

// NewRenderer returns a glamour Markdown renderer sized to width.
// A width <= 0 keeps glamour's default word wrap.
func NewRenderer(width int) (Renderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ForWriter picks the Markdown renderer on a terminal and Plain otherwise.
func ForWriter(w io.Writer) Renderer {
	if !IsTerminal(w) {
		return Plain
	}
	width := 0
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	r, err := NewRenderer(width)
	if err != nil {
		return Plain
	}
	return r
}
