package diag

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Render writes a human-readable rendering of diagnostics to w, one per
// line plus its nested chain, indented by depth. Matches the teacher's
// idiom of writing progress directly to an io.Writer (see the former
// internal/cli progress reporter) rather than going through a logging
// framework.
func Render(w io.Writer, items []*Diagnostic) {
	width := 0
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	for _, d := range items {
		renderOne(w, d, 0, width)
	}
}

func renderOne(w io.Writer, d *Diagnostic, depth int, width int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	loc := d.Path
	if d.Span != nil {
		loc = d.Span.String()
	}
	body := d.Body
	if width > 0 && len(body)+len(indent)+len(loc)+4 > width {
		body = wrap(body, width-len(indent)-2)
	}
	fmt.Fprintf(w, "%s%s: %s [%s]\n", indent, d.Severity, body, loc)
	if d.Child != nil {
		renderOne(w, d.Child, depth+1, width)
	}
}

func wrap(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	return s[:width] + "..."
}
