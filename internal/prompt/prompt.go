// Package prompt reads line-oriented operator input: yes/no confirmations,
// menu choices, free text, and one-time codes.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Iron-Ham/relpub/internal/ui"
)

// ErrNoInput is returned when input ends before a line could be read.
var ErrNoInput = fmt.Errorf("no input: %w", io.ErrUnexpectedEOF)

// Prompter reads answers from in and writes prompt labels through out.
type Prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    *ui.Printer
	mask   bool
}

// New creates a Prompter. Pass os.Stdin as in to allow masked secrets.
func New(in io.Reader, out *ui.Printer) *Prompter {
	return &Prompter{in: in, reader: bufio.NewReader(in), out: out}
}

// WithMask enables hidden input for Secret when in is a terminal.
func (p *Prompter) WithMask(mask bool) *Prompter {
	p.mask = mask
	return p
}

// Line prints label and returns the next input line with surrounding
// whitespace removed. A final line without a newline is still returned.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out.Writer(), p.out.Prompt(label))

	line, err := p.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Only "yes" and "y", in any case, count as
// agreement.
func (p *Prompter) Confirm(label string) (bool, error) {
	answer, err := p.Line(label)
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// Secret reads a value that should not be echoed. Input is hidden only when
// masking is enabled and in is a terminal; otherwise it behaves like Line.
func (p *Prompter) Secret(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !p.mask || !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Line(label)
	}

	fmt.Fprint(p.out.Writer(), p.out.Prompt(label))
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out.Writer())
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Stdin returns the reader a child process should use so it sees input in
// order after the prompter's own reads. Read-ahead input is served from the
// buffer. With nothing buffered and a file for in, the file itself is
// returned so the child inherits the terminal.
func (p *Prompter) Stdin() io.Reader {
	if _, ok := p.in.(*os.File); ok && p.reader.Buffered() == 0 {
		return p.in
	}
	return p.reader
}

// IsYes reports whether answer is an affirmative response.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
