// Package vcs wraps the git binary behind the narrow set of operations the
// release pipeline needs. All invocations go through a runner.Runner so the
// client can be exercised against a scripted fake.
package vcs

import (
	"context"
	"strings"

	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/runner"
)

const remoteRefPrefix = "refs/remotes/"

// Client implements Repository using git CLI commands.
type Client struct {
	repoDir string
	runner  runner.Runner
}

// NewClient creates a Client for the repository at repoDir using os/exec.
func NewClient(repoDir string) *Client {
	return NewClientWithRunner(repoDir, runner.New())
}

// NewClientWithRunner creates a Client with a custom runner.
// This is primarily useful for testing.
func NewClientWithRunner(repoDir string, r runner.Runner) *Client {
	return &Client{
		repoDir: repoDir,
		runner:  r,
	}
}

func (c *Client) git(ctx context.Context, args ...string) (runner.Result, error) {
	return c.runner.Run(ctx, runner.Command{Dir: c.repoDir, Name: "git", Args: args})
}

// gitErr runs git and converts a nonzero exit into a GitError.
func (c *Client) gitErr(ctx context.Context, message, branch string, args ...string) (runner.Result, error) {
	cmd := runner.Command{Dir: c.repoDir, Name: "git", Args: args}
	res, err := c.runner.Run(ctx, cmd)
	if err := runner.Check(cmd, res, err); err != nil {
		return res, errors.NewGitError(message, err).
			WithRepository(c.repoDir).
			WithBranch(branch).
			WithGitOutput(res.Output())
	}
	return res, nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	res, err := c.gitErr(ctx, "failed to get current branch", "", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// RemoteHead returns the branch name the remote's symbolic HEAD points at,
// e.g. "main" for refs/remotes/origin/HEAD -> refs/remotes/origin/main.
func (c *Client) RemoteHead(ctx context.Context, remote string) (string, error) {
	res, err := c.gitErr(ctx, "failed to read remote HEAD", "", "symbolic-ref", remoteRefPrefix+remote+"/HEAD")
	if err != nil {
		return "", err
	}
	ref := strings.TrimSpace(res.Stdout)
	name := strings.TrimPrefix(ref, remoteRefPrefix+remote+"/")
	if name == "" || name == ref {
		return "", errors.NewGitError("unexpected remote HEAD reference", errors.ErrBranchNotFound).
			WithRepository(c.repoDir).
			WithGitOutput(ref)
	}
	return name, nil
}

// BranchExists reports whether name resolves to a commit.
func (c *Client) BranchExists(ctx context.Context, name string) bool {
	res, err := c.git(ctx, "rev-parse", "--verify", "--quiet", name)
	return err == nil && res.Success()
}

// IsClean reports whether the index and working tree match HEAD.
// git diff-index exits 1 when there are differences; any other failure is
// returned as an error.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	res, err := c.git(ctx, "diff-index", "--quiet", "HEAD", "--")
	if err != nil {
		return false, errors.NewGitError("failed to check working tree", err).WithRepository(c.repoDir)
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, errors.NewGitError("failed to check working tree", nil).
			WithRepository(c.repoDir).
			WithGitOutput(res.Output())
	}
}

// Fetch updates the remote-tracking ref for branch.
func (c *Client) Fetch(ctx context.Context, remote, branch string) error {
	_, err := c.gitErr(ctx, "failed to fetch", branch, "fetch", remote, branch)
	return err
}

// RevParse resolves rev to a commit hash.
func (c *Client) RevParse(ctx context.Context, rev string) (string, error) {
	res, err := c.gitErr(ctx, "failed to resolve "+rev, "", "rev-parse", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// CreateAndSwitch creates name from HEAD and checks it out.
func (c *Client) CreateAndSwitch(ctx context.Context, name string) error {
	res, err := c.gitErr(ctx, "failed to create branch", name, "checkout", "-b", name)
	if err != nil {
		if strings.Contains(res.Output(), "already exists") {
			return errors.NewGitError("branch already exists", errors.ErrBranchExists).
				WithRepository(c.repoDir).
				WithBranch(name).
				WithGitOutput(res.Output())
		}
		return err
	}
	return nil
}

// Checkout switches to an existing branch.
func (c *Client) Checkout(ctx context.Context, name string) error {
	_, err := c.gitErr(ctx, "failed to checkout", name, "checkout", name)
	return err
}

// MergeNoFF merges branch into HEAD with --no-ff.
func (c *Client) MergeNoFF(ctx context.Context, branch, message string) error {
	_, err := c.gitErr(ctx, "failed to merge", branch, "merge", branch, "--no-ff", "-m", message)
	return err
}

// PushWithTags pushes branch to remote with --follow-tags.
func (c *Client) PushWithTags(ctx context.Context, remote, branch string) error {
	_, err := c.gitErr(ctx, "failed to push", branch, "push", remote, branch, "--follow-tags")
	return err
}

// DeleteBranch deletes a local branch.
func (c *Client) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	res, err := c.gitErr(ctx, "failed to delete branch", name, "branch", flag, name)
	if err != nil {
		if strings.Contains(res.Output(), "not found") {
			return errors.NewGitError("branch not found", errors.ErrBranchNotFound).
				WithRepository(c.repoDir).
				WithBranch(name).
				WithGitOutput(res.Output())
		}
		return err
	}
	return nil
}
