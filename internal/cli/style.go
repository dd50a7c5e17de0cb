package cli

import (
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/roach88/todocheck/internal/engine"
)

// painter colours status marks. Output that is not a terminal, or any output
// under --no-color or NO_COLOR, stays plain ASCII.
type painter struct {
	out *termenv.Output
}

func newPainter(w io.Writer, noColor bool) *painter {
	profile := termenv.Ascii
	if !noColor && isTerminal(w) {
		profile = termenv.EnvColorProfile()
	}
	return &painter{out: termenv.NewOutput(w, termenv.WithProfile(profile))}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *painter) paint(s, color string) string {
	return p.out.String(s).Foreground(p.out.Color(color)).String()
}

func (p *painter) pass(s string) string { return p.paint(s, "2") }
func (p *painter) fail(s string) string { return p.paint(s, "1") }
func (p *painter) skip(s string) string { return p.paint(s, "3") }

func (p *painter) faint(s string) string {
	return p.out.String(s).Faint().String()
}

// mark renders a case status as a fixed-width tag.
func (p *painter) mark(status engine.Status) string {
	switch status {
	case engine.StatusPassed:
		return p.pass("PASS")
	case engine.StatusFailed:
		return p.fail("FAIL")
	default:
		return p.skip("SKIP")
	}
}

// indent prefixes every line after the first, for multi-line errors.
func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
