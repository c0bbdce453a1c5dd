package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/barysiuk/clipbridge/internal/core"
)

// Reporter prints progress lines. Colors follow the writer's capabilities,
// so piping the output yields plain text.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	step    lipgloss.Style
	warn    lipgloss.Style
	success lipgloss.Style
}

var _ core.Reporter = (*Reporter)(nil)

// NewReporter returns a Reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	r := lipgloss.NewRenderer(out)
	return &Reporter{
		out:     out,
		step:    r.NewStyle().Foreground(colorSecondary),
		warn:    r.NewStyle().Foreground(colorWarning),
		success: r.NewStyle().Foreground(colorSuccess).Bold(true),
	}
}

func (r *Reporter) Step(msg string)    { r.line(r.step, "•", msg) }
func (r *Reporter) Warn(msg string)    { r.line(r.warn, "!", "warning: "+msg) }
func (r *Reporter) Success(msg string) { r.line(r.success, "✓", msg) }

func (r *Reporter) line(style lipgloss.Style, mark, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", style.Render(mark), msg)
}

// RenderError styles a formatted core error for the terminal.
func RenderError(out io.Writer, err error) {
	r := lipgloss.NewRenderer(out)
	fmt.Fprintln(out, r.NewStyle().Foreground(colorDanger).Bold(true).Render("✗ ")+core.FormatError(err))
}
