// Package errors provides centralized error definitions and error handling utilities
// for relpub. It defines the release pipeline's error taxonomy, git and validation
// errors, and classification helpers used to pick the process exit status.
//
// # Error Types
//
// Release pipeline errors, in the order a session can raise them:
//   - DetectionError: current or default branch could not be determined
//   - DirtyTreeError: the working tree has uncommitted changes
//   - AlreadyOnReleaseError: the session was started from a release branch
//   - CreationError: the release branch could not be created
//   - PublishExhaustedError: every OTP attempt was rejected
//   - MergeFailedError: merge-back failed; the release branch is preserved
//
// Supporting errors:
//   - GitError: a git invocation failed (carries captured output)
//   - ValidationError: invalid configuration, manifest, or input
//
// # Usage
//
//	err := errors.NewCreationError("release/v1.2.4", cause).WithGitOutput(out)
//
//	var mergeErr *errors.MergeFailedError
//	if errors.As(err, &mergeErr) {
//	    fmt.Println(mergeErr.RecoveryCommands)
//	}
//
//	if errors.Is(err, errors.ErrDirtyWorktree) { ... }
//
// # Classification
//
//   - Preconditions: raised before any mutation of the repository
//   - Recoverable: the repository was mutated and the operator must decide
//     what to do with the preserved release branch
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for errors that might indicate a problem but aren't fatal.
	SeverityWarning Severity = iota
	// SeverityError is for errors that abort the session.
	SeverityError
	// SeverityCritical is for errors that leave the repository needing operator attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Git-related sentinel errors
var (
	// ErrBranchNotDetected indicates that a branch name could not be resolved.
	ErrBranchNotDetected = New("branch could not be detected")
	// ErrBranchExists indicates that a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrDirtyWorktree indicates that the worktree has uncommitted changes.
	ErrDirtyWorktree = New("worktree has uncommitted changes")
	// ErrOnReleaseBranch indicates that HEAD is already a release branch.
	ErrOnReleaseBranch = New("already on a release branch")
	// ErrMergeFailed indicates that merge-back did not complete.
	ErrMergeFailed = New("merge-back failed")
)

// Publish-related sentinel errors
var (
	// ErrPublishExhausted indicates that every publish attempt was rejected.
	ErrPublishExhausted = New("publish attempts exhausted")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// RelpubError is the base interface for all relpub errors.
type RelpubError interface {
	error
	Unwrap() error
	Severity() Severity

	// Precondition reports whether the error was raised before the
	// repository was mutated.
	Precondition() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message      string
	cause        error
	severity     Severity
	precondition bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// Precondition reports whether no mutation happened before the error.
func (e *baseError) Precondition() bool {
	return e.precondition
}

// format renders "<prefix> [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Precondition Errors
// -----------------------------------------------------------------------------

// DetectionError indicates that the current or default branch could not be
// resolved.
//
// Example:
//
//	err := errors.NewDetectionError("no default branch among [main master]", nil).WithRemote("origin")
type DetectionError struct {
	baseError
	Remote     string
	Candidates []string
}

// NewDetectionError creates a new DetectionError.
func NewDetectionError(message string, cause error) *DetectionError {
	return &DetectionError{
		baseError: baseError{
			message:      message,
			cause:        cause,
			severity:     SeverityError,
			precondition: true,
		},
	}
}

// WithRemote adds the remote name to the error context.
func (e *DetectionError) WithRemote(remote string) *DetectionError {
	e.Remote = remote
	return e
}

// WithCandidates records the candidate branch names that were tried.
func (e *DetectionError) WithCandidates(candidates []string) *DetectionError {
	e.Candidates = candidates
	return e
}

// Error returns the formatted error message.
func (e *DetectionError) Error() string {
	var parts []string
	if e.Remote != "" {
		parts = append(parts, "remote="+e.Remote)
	}
	if len(e.Candidates) > 0 {
		parts = append(parts, "candidates="+strings.Join(e.Candidates, "|"))
	}
	return e.format("detection error", parts)
}

// Is checks if this error matches the target.
func (e *DetectionError) Is(target error) bool {
	if _, ok := target.(*DetectionError); ok {
		return true
	}
	return target == ErrBranchNotDetected
}

// DirtyTreeError indicates uncommitted changes in the working tree.
type DirtyTreeError struct {
	baseError
	GitOutput string
}

// NewDirtyTreeError creates a new DirtyTreeError.
func NewDirtyTreeError(cause error) *DirtyTreeError {
	return &DirtyTreeError{
		baseError: baseError{
			message:      "working directory not clean; commit or stash changes first",
			cause:        cause,
			severity:     SeverityError,
			precondition: true,
		},
	}
}

// WithGitOutput adds git command output to the error context.
func (e *DirtyTreeError) WithGitOutput(output string) *DirtyTreeError {
	e.GitOutput = output
	return e
}

// Error returns the formatted error message.
func (e *DirtyTreeError) Error() string {
	return e.format("dirty tree", nil)
}

// Is checks if this error matches the target.
func (e *DirtyTreeError) Is(target error) bool {
	if _, ok := target.(*DirtyTreeError); ok {
		return true
	}
	return target == ErrDirtyWorktree
}

// AlreadyOnReleaseError indicates the session started on a release branch.
type AlreadyOnReleaseError struct {
	baseError
	Branch        string
	DefaultBranch string
}

// NewAlreadyOnReleaseError creates a new AlreadyOnReleaseError.
func NewAlreadyOnReleaseError(branch, defaultBranch string) *AlreadyOnReleaseError {
	return &AlreadyOnReleaseError{
		baseError: baseError{
			message:      fmt.Sprintf("switch away first: git checkout %s", defaultBranch),
			severity:     SeverityError,
			precondition: true,
		},
		Branch:        branch,
		DefaultBranch: defaultBranch,
	}
}

// Error returns the formatted error message.
func (e *AlreadyOnReleaseError) Error() string {
	return e.format("already on release branch", []string{"branch=" + e.Branch})
}

// Is checks if this error matches the target.
func (e *AlreadyOnReleaseError) Is(target error) bool {
	if _, ok := target.(*AlreadyOnReleaseError); ok {
		return true
	}
	return target == ErrOnReleaseBranch
}

// -----------------------------------------------------------------------------
// Mutation Errors
// -----------------------------------------------------------------------------

// CreationError indicates that the release branch could not be created.
// Nothing beyond a possible branch switch happened, so the whole session is
// safe to re-run.
type CreationError struct {
	baseError
	Branch    string
	GitOutput string
}

// NewCreationError creates a new CreationError.
func NewCreationError(branch string, cause error) *CreationError {
	return &CreationError{
		baseError: baseError{
			message:      "failed to create release branch",
			cause:        cause,
			severity:     SeverityError,
			precondition: true,
		},
		Branch: branch,
	}
}

// WithGitOutput adds git command output to the error context.
func (e *CreationError) WithGitOutput(output string) *CreationError {
	e.GitOutput = output
	return e
}

// Error returns the formatted error message.
func (e *CreationError) Error() string {
	return e.format("creation error", []string{"branch=" + e.Branch})
}

// Is checks if this error matches the target.
func (e *CreationError) Is(target error) bool {
	if _, ok := target.(*CreationError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// PublishExhaustedError indicates that the publish loop ended without a
// successful publish.
type PublishExhaustedError struct {
	baseError
	Branch   string
	Attempts int
	// Preserved is true when the operator kept the release branch.
	Preserved bool
}

// NewPublishExhaustedError creates a new PublishExhaustedError.
func NewPublishExhaustedError(branch string, attempts int, cause error) *PublishExhaustedError {
	return &PublishExhaustedError{
		baseError: baseError{
			message:  "publish failed",
			cause:    cause,
			severity: SeverityCritical,
		},
		Branch:   branch,
		Attempts: attempts,
	}
}

// WithPreserved records whether the release branch was kept.
func (e *PublishExhaustedError) WithPreserved(preserved bool) *PublishExhaustedError {
	e.Preserved = preserved
	return e
}

// Error returns the formatted error message.
func (e *PublishExhaustedError) Error() string {
	parts := []string{"branch=" + e.Branch, fmt.Sprintf("attempts=%d", e.Attempts)}
	return e.format("publish exhausted", parts)
}

// Is checks if this error matches the target.
func (e *PublishExhaustedError) Is(target error) bool {
	if _, ok := target.(*PublishExhaustedError); ok {
		return true
	}
	if target == ErrPublishExhausted {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// MergeFailedError indicates that merge-back stopped part way. The release
// branch is preserved and RecoveryCommands completes the merge by hand.
type MergeFailedError struct {
	baseError
	ReleaseBranch    string
	DefaultBranch    string
	Step             string
	GitOutput        string
	RecoveryCommands []string
}

// NewMergeFailedError creates a new MergeFailedError.
func NewMergeFailedError(step, releaseBranch, defaultBranch string, cause error) *MergeFailedError {
	return &MergeFailedError{
		baseError: baseError{
			message:  step + " failed",
			cause:    cause,
			severity: SeverityCritical,
		},
		ReleaseBranch: releaseBranch,
		DefaultBranch: defaultBranch,
		Step:          step,
	}
}

// WithGitOutput adds git command output to the error context.
func (e *MergeFailedError) WithGitOutput(output string) *MergeFailedError {
	e.GitOutput = output
	return e
}

// WithRecoveryCommands records the manual command sequence.
func (e *MergeFailedError) WithRecoveryCommands(cmds []string) *MergeFailedError {
	e.RecoveryCommands = cmds
	return e
}

// Error returns the formatted error message.
func (e *MergeFailedError) Error() string {
	parts := []string{"release=" + e.ReleaseBranch, "default=" + e.DefaultBranch}
	return e.format("merge failed", parts)
}

// Is checks if this error matches the target.
func (e *MergeFailedError) Is(target error) bool {
	if _, ok := target.(*MergeFailedError); ok {
		return true
	}
	if target == ErrMergeFailed {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Supporting Errors
// -----------------------------------------------------------------------------

// GitError represents a failed git invocation.
//
// Example:
//
//	err := errors.NewGitError("failed to checkout", cause).WithBranch("main").WithGitOutput(out)
type GitError struct {
	baseError
	Branch     string
	Repository string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, "branch="+e.Branch)
	}
	if e.Repository != "" {
		parts = append(parts, "repo="+e.Repository)
	}

	msg := e.format("git error", parts)
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// ValidationError represents invalid input, configuration, or state.
//
// Example:
//
//	err := errors.NewValidationError("version is not semver").WithField("version").WithValue("1.x")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:      message,
			severity:     SeverityError,
			precondition: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsPrecondition returns true if err was raised before the repository was
// mutated, meaning the session can simply be re-run.
func IsPrecondition(err error) bool {
	if err == nil {
		return false
	}
	var relErr RelpubError
	if As(err, &relErr) {
		return relErr.Precondition()
	}
	return false
}

// IsRecoverable returns true if err left a release branch behind that the
// operator must inspect or finish by hand.
func IsRecoverable(err error) bool {
	var exhausted *PublishExhaustedError
	if As(err, &exhausted) {
		return exhausted.Preserved
	}
	var merge *MergeFailedError
	return As(err, &merge)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RelpubError.
func GetSeverity(err error) Severity {
	var relErr RelpubError
	if As(err, &relErr) {
		return relErr.Severity()
	}
	return SeverityError
}

// ExitCode maps an error to the process exit status: 0 for nil, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
