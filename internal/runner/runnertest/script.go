// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/Iron-Ham/relpub/internal/runner"
)

// Call records a single command invocation.
type Call struct {
	Dir  string
	Line string
}

// Response is one scripted reply.
type Response struct {
	Result runner.Result
	Err    error
}

// Ok returns a successful response with the given stdout.
func Ok(stdout string) Response {
	return Response{Result: runner.Result{Stdout: stdout}}
}

// Fail returns a response with a nonzero exit code and the given stderr.
func Fail(code int, stderr string) Response {
	return Response{Result: runner.Result{ExitCode: code, Stderr: stderr}}
}

type rule struct {
	prefix    string
	responses []Response
	next      int
}

// Script answers commands by the longest matching command-line prefix.
// When two rules share a prefix the later one wins, so tests can override a
// fixture's rule.
// Each rule replies with its responses in order and repeats the last one once
// exhausted. Commands that match no rule succeed with empty output. Once ctx
// is cancelled every command is recorded and fails with ctx.Err().
type Script struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

// New creates an empty Script.
func New() *Script {
	return &Script{}
}

// On registers responses for commands whose rendered line starts with prefix.
func (s *Script) On(prefix string, responses ...Response) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(responses) == 0 {
		responses = []Response{Ok("")}
	}
	s.rules = append(s.rules, &rule{prefix: prefix, responses: responses})
	return s
}

// Run implements runner.Runner.
func (s *Script) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := cmd.String()
	s.calls = append(s.calls, Call{Dir: cmd.Dir, Line: line})
	if err := ctx.Err(); err != nil {
		return runner.Result{ExitCode: -1}, err
	}

	var best *rule
	for _, r := range s.rules {
		if strings.HasPrefix(line, r.prefix) && (best == nil || len(r.prefix) >= len(best.prefix)) {
			best = r
		}
	}
	if best == nil {
		return runner.Result{}, nil
	}

	idx := best.next
	if idx >= len(best.responses) {
		idx = len(best.responses) - 1
	} else {
		best.next++
	}
	resp := best.responses[idx]

	if cmd.Stream != nil && resp.Result.Output() != "" {
		_, _ = cmd.Stream.Write([]byte(resp.Result.Output() + "\n"))
	}
	return resp.Result, resp.Err
}

// Calls returns every recorded command line in order.
func (s *Script) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, len(s.calls))
	for i, c := range s.calls {
		lines[i] = c.Line
	}
	return lines
}

// Count returns how many recorded commands start with prefix.
func (s *Script) Count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c.Line, prefix) {
			n++
		}
	}
	return n
}

// Called reports whether any recorded command starts with prefix.
func (s *Script) Called(prefix string) bool {
	return s.Count(prefix) > 0
}

var _ runner.Runner = (*Script)(nil)
