// Package registry drives the publish tool (lerna by default) and npm through
// a runner.Runner: the dry-run version report, OTP-gated publishes, and
// post-publish lookups against the registry.
package registry

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/relpub/internal/config"
	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/runner"
)

// Client runs publish-tool commands in a repository.
type Client struct {
	dir    string
	cfg    config.RegistryConfig
	runner runner.Runner
	stdin  func() io.Reader
	stream io.Writer
}

// NewClient creates a Client for the repository at dir.
func NewClient(dir string, cfg config.RegistryConfig, r runner.Runner) *Client {
	return &Client{dir: dir, cfg: cfg, runner: r}
}

// Dir returns the repository directory commands run in.
func (c *Client) Dir() string {
	return c.dir
}

// WithStdin connects the publish command to the reader in returns when the
// command starts, for tools that prompt on their own.
func (c *Client) WithStdin(in func() io.Reader) *Client {
	c.stdin = in
	return c
}

// WithStream copies the output of long-running commands to w as it arrives.
func (c *Client) WithStream(w io.Writer) *Client {
	c.stream = w
	return c
}

// Streaming reports whether publish output is echoed as it arrives.
func (c *Client) Streaming() bool {
	return c.stream != nil
}

// DeclineAnswer is written to the report command's stdin so it stops at its
// confirmation prompt after printing the planned version changes.
const DeclineAnswer = "n\n"

// DryRun runs the version-change preview and returns its output. The tool's
// confirmation is declined, so nothing is written. A nonzero exit is returned
// as an error along with whatever was printed.
func (c *Client) DryRun(ctx context.Context) (string, error) {
	cmd := runner.Command{
		Dir:   c.dir,
		Name:  c.cfg.Command,
		Args:  slices.Clone(c.cfg.DryRunArgs),
		Stdin: strings.NewReader(DeclineAnswer),
	}
	res, err := c.runner.Run(ctx, cmd)
	if err := runner.Check(cmd, res, err); err != nil {
		return res.Output(), errors.Wrap(err, "dry-run failed")
	}
	return res.Output(), nil
}

// PublishArgs builds the publish argument list. A non-empty bump is inserted
// after the subcommand; the code always goes last as --otp CODE.
func (c *Client) PublishArgs(bump, code string) []string {
	args := make([]string, 0, len(c.cfg.PublishArgs)+3)
	if len(c.cfg.PublishArgs) > 0 {
		args = append(args, c.cfg.PublishArgs[0])
	}
	if bump != "" {
		args = append(args, bump)
	}
	if len(c.cfg.PublishArgs) > 1 {
		args = append(args, c.cfg.PublishArgs[1:]...)
	}
	return append(args, "--otp", code)
}

// Publish runs one publish attempt with the given one-time code. The result
// is returned as-is; a nonzero exit is not an error and its output is what
// callers classify.
func (c *Client) Publish(ctx context.Context, bump, code string) (runner.Result, error) {
	var stdin io.Reader
	if c.stdin != nil {
		stdin = c.stdin()
	}
	return c.runner.Run(ctx, runner.Command{
		Dir:    c.dir,
		Name:   c.cfg.Command,
		Args:   c.PublishArgs(bump, code),
		Stdin:  stdin,
		Stream: c.stream,
	})
}

// DisplayCommand renders a publish command line with the code redacted.
func (c *Client) DisplayCommand(bump string) string {
	return runner.Command{Name: c.cfg.Command, Args: c.PublishArgs(bump, "******")}.String()
}

// ViewVersion asks npm for the latest published version of pkg.
func (c *Client) ViewVersion(ctx context.Context, pkg string) (string, error) {
	cmd := runner.Command{Dir: c.dir, Name: "npm", Args: []string{"view", pkg, "version"}}
	res, err := c.runner.Run(ctx, cmd)
	if err := runner.Check(cmd, res, err); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// RunScript runs a pre-flight script with bash, streaming its output.
// A script that does not exist is reported as os.ErrNotExist so callers can
// skip it; a nonzero exit is a ValidationError.
func (c *Client) RunScript(ctx context.Context, script string) error {
	path := script
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	cmd := runner.Command{Dir: c.dir, Name: "bash", Args: []string{path}, Stream: c.stream}
	res, err := c.runner.Run(ctx, cmd)
	if err := runner.Check(cmd, res, err); err != nil {
		return errors.NewValidationError("pre-flight checks failed").
			WithField("preflight.script").
			WithValue(script).
			WithCause(err)
	}
	return nil
}
