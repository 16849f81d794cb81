// Package inspect reads the repository's starting position and refuses to
// start a release from an unsafe one.
package inspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

// Inspector determines the current and default branch names.
type Inspector struct {
	repo       vcs.BranchReader
	remote     string
	candidates []string
}

// NewInspector creates an Inspector. candidates are tried in order when the
// remote has no symbolic HEAD.
func NewInspector(repo vcs.BranchReader, remote string, candidates []string) *Inspector {
	return &Inspector{repo: repo, remote: remote, candidates: candidates}
}

// Detect returns the current and default branch names.
//
// The default branch is the target of <remote>/HEAD, else the first
// candidate that exists locally. When neither resolves, Detect returns the
// current branch together with a DetectionError so the caller may substitute
// a fallback.
func (i *Inspector) Detect(ctx context.Context) (current, defaultBranch string, err error) {
	current, err = i.repo.CurrentBranch(ctx)
	if err != nil {
		return "", "", errors.NewDetectionError("failed to read current branch", err)
	}

	if name, err := i.repo.RemoteHead(ctx, i.remote); err == nil {
		return current, name, nil
	}

	for _, name := range i.candidates {
		if i.repo.BranchExists(ctx, name) {
			return current, name, nil
		}
	}

	return current, "", errors.NewDetectionError(
		fmt.Sprintf("could not determine default branch from %s/HEAD or candidates", i.remote), nil).
		WithRemote(i.remote).
		WithCandidates(i.candidates)
}

// Validator checks that a release may start from the current position.
type Validator struct {
	repo   vcs.TreeInspector
	remote string
	prefix string
}

// NewValidator creates a Validator. prefix is the release branch prefix.
func NewValidator(repo vcs.TreeInspector, remote, prefix string) *Validator {
	return &Validator{repo: repo, remote: remote, prefix: prefix}
}

// Validate checks the hard preconditions and returns them as errors:
// uncommitted changes (DirtyTreeError) and starting from a release branch
// (AlreadyOnReleaseError). Remote synchronization is best-effort and only
// ever produces warnings.
func (v *Validator) Validate(ctx context.Context, current, defaultBranch string) ([]string, error) {
	clean, err := v.repo.IsClean(ctx)
	if err != nil {
		return nil, errors.NewDirtyTreeError(err)
	}
	if !clean {
		return nil, errors.NewDirtyTreeError(nil)
	}

	if strings.HasPrefix(current, v.prefix) {
		return nil, errors.NewAlreadyOnReleaseError(current, defaultBranch)
	}

	if warning := v.checkSync(ctx, current); warning != "" {
		return []string{warning}, nil
	}
	return nil, nil
}

func (v *Validator) checkSync(ctx context.Context, branch string) string {
	const unverified = "could not verify remote status"

	if err := v.repo.Fetch(ctx, v.remote, branch); err != nil {
		return unverified
	}
	local, err := v.repo.RevParse(ctx, "@")
	if err != nil {
		return unverified
	}
	upstream, err := v.repo.RevParse(ctx, "@{u}")
	if err != nil {
		return unverified
	}
	if local != upstream {
		return fmt.Sprintf("%s is not up to date with %s", branch, v.remote)
	}
	return ""
}
