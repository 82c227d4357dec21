package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the langrun banner followed by a one-line status.
func PrintBanner(w io.Writer, version, status string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _                                  ", "#34d399"},
		{"| | __ _ _ __   __ _ _ __ _   _ _ __  ", "#2dd4bf"},
		{"| |/ _` | '_ \\ / _` | '__| | | | '_ \\ ", "#22d3ee"},
		{"| | (_| | | | | (_| | |  | |_| | | | |", "#38bdf8"},
		{"|_|\\__,_|_| |_|\\__, |_|   \\__,_|_| |_|", "#60a5fa"},
		{"               |___/                 ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String(fmt.Sprintf("  v%s  %s", version, status)).Faint())
	fmt.Fprintln(w)
}
