package diagnostics

import (
	"fmt"
	"io"
	"os"
)

// ANSI escape sequences used by the renderer.
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorBold   = "\x1b[1m"
)

// Renderer writes diagnostics as human-readable text, one line per
// diagnostic, optionally colourised when the destination is a terminal.
type Renderer struct {
	out    io.Writer
	colour bool
}

// NewRenderer creates a renderer for the given writer. Colour is
// enabled only when the writer is os.Stderr or os.Stdout attached to a
// terminal.
func NewRenderer(out io.Writer) *Renderer {
	colour := false
	if f, ok := out.(*os.File); ok {
		colour = isTerminal(f.Fd())
	}
	return &Renderer{out: out, colour: colour}
}

// NewPlainRenderer creates a renderer that never colourises.
func NewPlainRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) levelColor(l Level) string {
	switch l {
	case LevelError:
		return colorRed
	case LevelWarning:
		return colorYellow
	default:
		return colorCyan
	}
}

// Render writes a single diagnostic.
func (r *Renderer) Render(d Diagnostic) {
	if !r.colour {
		fmt.Fprintln(r.out, d.String())
		return
	}
	loc := ""
	if d.Span.IsValid() {
		loc = colorBold + d.Span.String() + colorReset + ": "
	}
	fmt.Fprintf(r.out, "%s%s%s%s [%s]: %s\n",
		loc, r.levelColor(d.Level), d.Level.String(), colorReset, d.Category.String(), d.Message)
}

// RenderAll writes every diagnostic in the collector in sorted order,
// followed by a summary line when errors are present.
func (r *Renderer) RenderAll(c *Collector) {
	for _, d := range c.Diagnostics() {
		r.Render(d)
	}
	if c.ErrorCount() > 0 {
		fmt.Fprintf(r.out, "%d error(s)\n", c.ErrorCount())
	}
}
