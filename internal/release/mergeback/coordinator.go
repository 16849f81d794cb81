// Package mergeback integrates a published release branch into the default
// branch. On any failure the release branch is kept and the operator gets
// the exact commands to finish by hand. The remote copy of a release branch
// is never deleted.
package mergeback

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/logging"
	"github.com/Iron-Ham/relpub/internal/release/session"
	"github.com/Iron-Ham/relpub/internal/ui"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

// Merge-back steps, in order.
const (
	StepCheckout = "checkout"
	StepMerge    = "merge"
	StepPush     = "push"
)

// DefaultMessage is the merge commit message template.
const DefaultMessage = "chore: merge release %s"

// Coordinator performs merge-back for a session.
type Coordinator struct {
	repo     vcs.BranchWriter
	remote   string
	template string
	out      *ui.Printer
	logger   *logging.Logger
}

// NewCoordinator creates a Coordinator. template must contain one %s for
// the target version.
func NewCoordinator(repo vcs.BranchWriter, remote, template string, out *ui.Printer, logger *logging.Logger) *Coordinator {
	if template == "" {
		template = DefaultMessage
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{repo: repo, remote: remote, template: template, out: out, logger: logger}
}

// Message renders the merge commit message for version.
func (c *Coordinator) Message(version string) string {
	return fmt.Sprintf(c.template, version)
}

// RecoveryCommands is the manual sequence that completes a merge-back.
func RecoveryCommands(releaseBranch, defaultBranch, remote string) []string {
	return []string{
		"git checkout " + defaultBranch,
		"git merge " + releaseBranch,
		fmt.Sprintf("git push %s %s --follow-tags", remote, defaultBranch),
	}
}

// Merge checks out the default branch, merges the release branch with
// --no-ff, and pushes the default branch with its tags. The local release
// branch is deleted only after all three succeed, and a failed deletion is
// only a warning.
func (c *Coordinator) Merge(ctx context.Context, sess *session.Session) error {
	release := sess.BranchName()
	def := sess.DefaultBranch

	c.out.Info("Merging %s back to %s", release, def)

	steps := []struct {
		name string
		run  func() error
	}{
		{StepCheckout, func() error { return c.repo.Checkout(ctx, def) }},
		{StepMerge, func() error { return c.repo.MergeNoFF(ctx, release, c.Message(sess.TargetVersion)) }},
		{StepPush, func() error { return c.repo.PushWithTags(ctx, c.remote, def) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return c.fail(step.name, release, def, err)
		}
	}

	sess.Branch.Merged = true
	c.out.Success("Merged %s into %s and pushed to %s", release, def, c.remote)
	c.logger.Info("merge-back complete", "release_branch", release, "default_branch", def)

	if err := c.repo.DeleteBranch(ctx, release, false); err != nil {
		c.out.Warning("Could not delete local branch %s: %v", release, err)
		c.logger.Warn("local release branch not deleted", "release_branch", release, "error", err.Error())
		return nil
	}
	sess.Branch.LocallyDeleted = true
	c.out.Success("Deleted local release branch: %s", release)
	return nil
}

func (c *Coordinator) fail(step, release, def string, cause error) error {
	cmds := RecoveryCommands(release, def, c.remote)

	c.out.Error("Merge-back failed during %s: %v", step, cause)
	c.out.Warning("Release branch %s has been preserved.", release)
	c.out.Info("To complete the merge manually:")
	c.out.Commands(cmds)

	c.logger.Error("merge-back failed", "step", step, "release_branch", release, "default_branch", def)

	merr := errors.NewMergeFailedError(step, release, def, cause).WithRecoveryCommands(cmds)
	var gitErr *errors.GitError
	if errors.As(cause, &gitErr) {
		merr.WithGitOutput(gitErr.GitOutput)
	}
	return merr
}
