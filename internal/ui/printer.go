// Package ui renders the human-readable release transcript: banners, status
// lines marked ✓ ✗ ⚠ ℹ, summaries, and command listings the operator can
// copy into a shell.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status markers
const (
	MarkSuccess = "✓"
	MarkError   = "✗"
	MarkWarning = "⚠"
	MarkInfo    = "ℹ"
)

// Printer writes the transcript to an io.Writer.
type Printer struct {
	w      io.Writer
	styles Styles
}

// New creates a Printer for w. Colors are emitted only when w is a terminal
// that supports them.
func New(w io.Writer) *Printer {
	return &Printer{w: w, styles: NewStyles(lipgloss.NewRenderer(w))}
}

// Writer returns the underlying writer, for streaming child process output.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Styles returns the styles used by the printer.
func (p *Printer) Styles() Styles {
	return p.styles
}

// Header prints a centered title between two rules.
func (p *Printer) Header(title string) {
	rule := p.styles.Header.Render(strings.Repeat("=", HeaderWidth))
	fmt.Fprintf(p.w, "\n%s\n%s\n%s\n\n", rule, p.styles.Header.Render(center(title, HeaderWidth)), rule)
}

// Success prints a ✓ line.
func (p *Printer) Success(format string, args ...any) {
	p.mark(p.styles.Success, MarkSuccess, format, args...)
}

// Error prints a ✗ line.
func (p *Printer) Error(format string, args ...any) {
	p.mark(p.styles.Error, MarkError, format, args...)
}

// Warning prints a ⚠ line.
func (p *Printer) Warning(format string, args ...any) {
	p.mark(p.styles.Warning, MarkWarning, format, args...)
}

// Info prints an ℹ line.
func (p *Printer) Info(format string, args ...any) {
	p.mark(p.styles.Info, MarkInfo, format, args...)
}

func (p *Printer) mark(style lipgloss.Style, mark, format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", style.Render(mark), fmt.Sprintf(format, args...))
}

// Println prints an unstyled line.
func (p *Printer) Println(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}

// Summary prints a labelled block of key/value rows in the given order.
func (p *Printer) Summary(title string, rows [][2]string) {
	fmt.Fprintf(p.w, "\n%s\n", p.styles.Label.Render(title+":"))
	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}
	for _, row := range rows {
		fmt.Fprintf(p.w, "  %-*s %s\n", width+1, row[0]+":", row[1])
	}
}

// Commands prints numbered shell commands indented under the previous line.
func (p *Printer) Commands(cmds []string) {
	for i, c := range cmds {
		fmt.Fprintf(p.w, "  %d. %s\n", i+1, p.styles.Command.Render(c))
	}
}

// Prompt renders a prompt label without a trailing newline.
func (p *Printer) Prompt(label string) string {
	return p.styles.Prompt.Render(label) + " "
}

func center(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", (width-n)/2) + s
}
