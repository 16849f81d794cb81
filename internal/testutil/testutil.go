// Package testutil provides git repository fixtures for relpub tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when git is unavailable or -short is set.
func RequireGit(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping git integration test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// SetupTestRepo creates a temporary git repository on branch main with one
// commit. The repository is removed when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	Git(t, dir, "init")
	Git(t, dir, "config", "user.email", "test@relpub.dev")
	Git(t, dir, "config", "user.name", "Relpub Test")
	Git(t, dir, "config", "commit.gpgsign", "false")

	CommitFile(t, dir, "README.md", "# Test Repository\n", "Initial commit")

	// Some systems default to master
	Git(t, dir, "branch", "-M", "main")

	return dir
}

// SetupTestRepoWithRemote creates a repository whose origin is a bare
// repository, with main pushed and origin/HEAD pointing at main.
func SetupTestRepoWithRemote(t *testing.T) (repoDir, remoteDir string) {
	t.Helper()

	remoteDir = t.TempDir()
	Git(t, remoteDir, "init", "--bare")

	repoDir = SetupTestRepo(t)
	Git(t, repoDir, "remote", "add", "origin", remoteDir)
	Git(t, repoDir, "push", "-u", "origin", "main")
	Git(t, repoDir, "remote", "set-head", "origin", "main")

	return repoDir, remoteDir
}

// CommitFile creates or updates a file and commits it.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	WriteFile(t, repoDir, path, content)
	Git(t, repoDir, "add", path)
	Git(t, repoDir, "commit", "-m", message)
}

// WriteFile writes a file without staging it.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// Git runs a git command in dir and fails the test on error. It returns
// trimmed stdout.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

// BranchExists reports whether a ref resolves in dir.
func BranchExists(t *testing.T, dir, ref string) bool {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", ref)
	cmd.Dir = dir
	return cmd.Run() == nil
}

// CurrentBranch returns the current branch name.
func CurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
}
