// Package branch creates the release branch and, after a failed publish,
// offers to remove it again.
package branch

import (
	"context"

	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/prompt"
	"github.com/Iron-Ham/relpub/internal/release/session"
	"github.com/Iron-Ham/relpub/internal/ui"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

// Manager owns the lifecycle of the release branch up to merge-back.
type Manager struct {
	repo   vcs.BranchWriter
	prefix string
}

// NewManager creates a Manager naming branches with prefix.
func NewManager(repo vcs.BranchWriter, prefix string) *Manager {
	return &Manager{repo: repo, prefix: prefix}
}

// Name returns the release branch name for version.
func (m *Manager) Name(version string) string {
	return session.BranchName(m.prefix, version)
}

// Create creates the release branch for version from HEAD and switches to
// it. On failure nothing else has been touched and a CreationError is
// returned.
func (m *Manager) Create(ctx context.Context, version string) (*session.ReleaseBranch, error) {
	name := m.Name(version)
	if err := m.repo.CreateAndSwitch(ctx, name); err != nil {
		cerr := errors.NewCreationError(name, err)
		var gitErr *errors.GitError
		if errors.As(err, &gitErr) {
			cerr.WithGitOutput(gitErr.GitOutput)
		}
		return nil, cerr
	}
	return &session.ReleaseBranch{Name: name, Created: true}, nil
}

// CleanupCommands are the manual steps that undo a release branch.
func CleanupCommands(original, release string) []string {
	return []string{
		"git checkout " + original,
		"git branch -D " + release,
	}
}

// OfferCleanup asks whether to delete the session's release branch and
// return to the branch the session started on. It reports whether the branch
// was deleted. The branch to delete is always the one tracked by sess.
//
// Deletion is forced: a failed publish may leave uncommitted tool output on
// the release branch. When the operator declines, input cannot be read, or a
// step fails, the branch is kept and the manual commands are printed.
func (m *Manager) OfferCleanup(ctx context.Context, sess *session.Session, p *prompt.Prompter, out *ui.Printer) (bool, error) {
	if sess.Branch == nil || !sess.Branch.Created {
		return false, nil
	}
	release := sess.Branch.Name
	original := sess.CurrentBranch

	out.Blank()
	ok, err := p.Confirm("Delete release branch and return to original? (yes/no):")
	if err != nil || !ok {
		out.Warning("Release branch preserved: %s", release)
		out.Info("To clean up manually:")
		out.Commands(CleanupCommands(original, release))
		return false, err
	}

	if err := m.repo.Checkout(ctx, original); err != nil {
		out.Error("Failed to checkout %s: %v", original, err)
		out.Info("To clean up manually:")
		out.Commands(CleanupCommands(original, release))
		return false, err
	}
	if err := m.repo.DeleteBranch(ctx, release, true); err != nil {
		out.Error("Failed to delete %s: %v", release, err)
		out.Info("To clean up manually:")
		out.Commands(CleanupCommands(original, release)[1:])
		return false, err
	}

	sess.Branch.LocallyDeleted = true
	out.Success("Deleted release branch %s and returned to %s", release, original)
	return true, nil
}
