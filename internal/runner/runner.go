// Package runner is the single seam through which relpub talks to external
// programs. Every git, lerna, npm, and shell invocation goes through a Runner
// so each pipeline stage can be tested against a scripted fake.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command describes one external invocation.
type Command struct {
	// Dir is the working directory. Empty means the current directory.
	Dir  string
	Name string
	Args []string

	// Stdin, when set, is connected to the child process. Interactive tools
	// that may prompt on their own need the operator's terminal here.
	Stdin io.Reader

	// Stream, when set, receives a copy of stdout and stderr as they are
	// produced. Output is still captured in the Result.
	Stream io.Writer
}

// String renders the command line for logs and transcripts.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the captured outcome of a command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner runs external commands.
//
// A nonzero exit is not an error: it is reported through Result.ExitCode so
// callers can branch on it. Run returns an error only when the process could
// not be started or was interrupted.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError wraps a nonzero Result as an error for callers that treat any
// failure as fatal.
type ExitError struct {
	Command string
	Result  Result
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Result.Output())
	if out == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Result.ExitCode, out)
}

// Check converts a nonzero Result into an *ExitError.
func Check(cmd Command, res Result, err error) error {
	if err != nil {
		return err
	}
	if !res.Success() {
		return &ExitError{Command: cmd.String(), Result: res}
	}
	return nil
}

// ExecRunner executes commands using os/exec.
type ExecRunner struct{}

// New creates a Runner backed by os/exec.
func New() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and captures stdout and stderr separately.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	if c.Stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stream)
		cmd.Stderr = io.MultiWriter(&stderr, c.Stream)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimRight(stdout.String(), "\n"),
		Stderr: strings.TrimRight(stderr.String(), "\n"),
	}

	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s interrupted: %w", c.String(), ctx.Err())
	}
	return res, fmt.Errorf("failed to run %s: %w", c.String(), err)
}

var _ Runner = (*ExecRunner)(nil)
