// Package session holds the single mutable record of one release run.
//
// A Session is created by the pipeline, passed by pointer to every stage,
// and discarded when the process exits. Nothing in it is persisted.
package session

import (
	"fmt"

	"github.com/google/uuid"
)

// State is the lifecycle position of a session.
type State string

const (
	StateInitialized   State = "initialized"
	StateInspected     State = "inspected"
	StateValidated     State = "validated"
	StatePlanned       State = "planned"
	StateBranchCreated State = "branch_created"
	StatePublished     State = "published"
	StateMerged        State = "merged"
	StateCompleted     State = "completed"

	// Side exits
	StateDryRun    State = "dry_run"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further stage runs after s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateDryRun, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// ReleaseBranch tracks the ephemeral branch a publish runs on.
type ReleaseBranch struct {
	Name           string
	Created        bool
	Merged         bool
	LocallyDeleted bool
}

// BranchName derives the release branch name for version.
func BranchName(prefix, version string) string {
	return prefix + "v" + version
}

// Session is the state of one release run.
type Session struct {
	// ID correlates debug log entries for this run.
	ID string

	CurrentBranch string
	DefaultBranch string

	// CurrentVersion is the manifest version before publishing, when known.
	CurrentVersion string
	// TargetVersion is the planned version or the synthetic multi-package tag.
	TargetVersion string
	// PublishArg is passed to the publish tool as the bump; empty lets the
	// tool decide.
	PublishArg string

	Branch *ReleaseBranch

	// Attempts counts rejected publish attempts. Malformed codes are not
	// counted.
	Attempts int

	State  State
	DryRun bool
}

// New creates a Session in the initialized state.
func New(dryRun bool) *Session {
	return &Session{
		ID:     uuid.NewString(),
		State:  StateInitialized,
		DryRun: dryRun,
	}
}

// Advance moves the session to state.
func (s *Session) Advance(state State) {
	s.State = state
}

// TrackBranch records the release branch. A session owns at most one.
func (s *Session) TrackBranch(b *ReleaseBranch) error {
	if s.Branch != nil && s.Branch.Name != b.Name {
		return fmt.Errorf("session already tracks release branch %s", s.Branch.Name)
	}
	s.Branch = b
	return nil
}

// BranchName returns the tracked release branch name, or "" if none.
func (s *Session) BranchName() string {
	if s.Branch == nil {
		return ""
	}
	return s.Branch.Name
}
