package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// ShouldColor reports whether output to f should use ANSI colors.
func ShouldColor(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Render writes the diagnostics to w, one per line, notes indented under
// their parent.
func Render(w io.Writer, diags []*DiagnosticError, color bool) {
	for _, d := range diags {
		renderOne(w, d, color, "")
	}
}

func renderOne(w io.Writer, d *DiagnosticError, color bool, indent string) {
	label := d.Severity.String()
	if color {
		var c string
		switch d.Severity {
		case SeverityWarning:
			c = ansiYellow
		case SeverityNote:
			c = ansiCyan
		default:
			c = ansiRed
		}
		label = ansiBold + c + label + ansiReset
	}
	if d.Code != "" {
		fmt.Fprintf(w, "%s%s: %s [%s]: %s\n", indent, d.Site, label, d.Code, d.Message)
	} else {
		fmt.Fprintf(w, "%s%s: %s: %s\n", indent, d.Site, label, d.Message)
	}
	for _, n := range d.Notes {
		renderOne(w, n, color, indent+"  ")
	}
}
