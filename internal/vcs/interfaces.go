package vcs

import "context"

// BranchReader resolves branch names without mutating the repository.
type BranchReader interface {
	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(ctx context.Context) (string, error)

	// RemoteHead returns the branch the remote's HEAD points at.
	RemoteHead(ctx context.Context, remote string) (string, error)

	// BranchExists reports whether a local ref resolves.
	BranchExists(ctx context.Context, name string) bool
}

// TreeInspector checks the state of the working tree and its upstream.
type TreeInspector interface {
	// IsClean reports whether there are no uncommitted changes against HEAD.
	IsClean(ctx context.Context) (bool, error)

	// Fetch updates the remote-tracking ref for branch.
	Fetch(ctx context.Context, remote, branch string) error

	// RevParse resolves a revision to a commit hash.
	RevParse(ctx context.Context, rev string) (string, error)
}

// BranchWriter mutates branches and history.
type BranchWriter interface {
	// CreateAndSwitch creates a branch from HEAD and checks it out in one step.
	CreateAndSwitch(ctx context.Context, name string) error

	// Checkout switches to an existing branch.
	Checkout(ctx context.Context, name string) error

	// MergeNoFF merges branch into the current branch, always creating a merge commit.
	MergeNoFF(ctx context.Context, branch, message string) error

	// PushWithTags pushes branch to remote together with reachable annotated tags.
	PushWithTags(ctx context.Context, remote, branch string) error

	// DeleteBranch deletes a local branch. force uses -D instead of -d.
	DeleteBranch(ctx context.Context, name string, force bool) error
}

// Repository combines all git operation interfaces into a single type.
type Repository interface {
	BranchReader
	TreeInspector
	BranchWriter
}

// Ensure Client implements all interfaces at compile time.
var (
	_ BranchReader  = (*Client)(nil)
	_ TreeInspector = (*Client)(nil)
	_ BranchWriter  = (*Client)(nil)
	_ Repository    = (*Client)(nil)
)
