package release

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/relpub/internal/config"
	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/logging"
	"github.com/Iron-Ham/relpub/internal/prompt"
	"github.com/Iron-Ham/relpub/internal/registry"
	"github.com/Iron-Ham/relpub/internal/release/session"
	"github.com/Iron-Ham/relpub/internal/runner"
	"github.com/Iron-Ham/relpub/internal/runner/runnertest"
	"github.com/Iron-Ham/relpub/internal/testutil"
	"github.com/Iron-Ham/relpub/internal/ui"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

const singleReport = "lerna notice cli v8.1.2\n\nChanges:\n - @fpkit/acss: 1.2.3 => 1.2.4\n"

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type fixture struct {
	cfg    *config.Config
	dir    string
	script *runnertest.Script
	out    *bytes.Buffer
	log    *bytes.Buffer
}

// newFixture scripts a clean repository on main whose origin/HEAD is main
// and a publish tool that reports a single 1.2.3 => 1.2.4 change.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	script := runnertest.New().
		On("git rev-parse --abbrev-ref HEAD", runnertest.Ok("main\n")).
		On("git symbolic-ref refs/remotes/origin/HEAD", runnertest.Ok("refs/remotes/origin/main\n")).
		On("git rev-parse @", runnertest.Ok("abc123\n")).
		On("lerna version --no-git-tag-version", runnertest.Ok(singleReport))

	return &fixture{
		cfg:    config.Default(),
		dir:    t.TempDir(),
		script: script,
		out:    &bytes.Buffer{},
		log:    &bytes.Buffer{},
	}
}

func (f *fixture) pipeline(input string, opts Options) *Pipeline {
	return f.pipelineWith(vcs.NewClientWithRunner(f.dir, f.script), f.script, input, opts)
}

func (f *fixture) pipelineWith(repo vcs.Repository, r runner.Runner, input string, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	out := ui.New(f.out)
	return New(f.cfg, Deps{
		Repo:     repo,
		Registry: registry.NewClient(f.dir, f.cfg.Registry, r),
		Prompter: prompt.New(strings.NewReader(input), out),
		Out:      out,
		Logger:   logging.NewWriterLogger(f.log, "DEBUG"),
	}, opts)
}

func (f *fixture) writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_FullRelease(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline("yes\n123456\n", Options{})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v\n%s", err, f.out.String())
	}

	want := []string{
		"git rev-parse --abbrev-ref HEAD",
		"git symbolic-ref refs/remotes/origin/HEAD",
		"git diff-index --quiet HEAD --",
		"git fetch origin main",
		"git rev-parse @",
		"git rev-parse @{u}",
		"lerna version --no-git-tag-version --no-push",
		"git diff-index --quiet HEAD --",
		"git checkout -b release/v1.2.4",
		"lerna publish --yes --otp 123456",
		"git checkout main",
		"git merge release/v1.2.4 --no-ff -m chore: merge release 1.2.4",
		"git push origin main --follow-tags",
		"git branch -d release/v1.2.4",
	}
	got := f.script.Calls()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	sess := p.Session()
	if sess.State != session.StateCompleted {
		t.Errorf("State = %s, want completed", sess.State)
	}
	if sess.TargetVersion != "1.2.4" || sess.PublishArg != "" {
		t.Errorf("TargetVersion = %q, PublishArg = %q", sess.TargetVersion, sess.PublishArg)
	}
	if !sess.Branch.Merged || !sess.Branch.LocallyDeleted {
		t.Errorf("Branch = %+v", sess.Branch)
	}

	transcript := f.out.String()
	for _, s := range []string{"@fpkit/acss: 1.2.3 => 1.2.4", "Release branch: release/v1.2.4", "Publish Complete!"} {
		if !strings.Contains(transcript, s) {
			t.Errorf("transcript missing %q", s)
		}
	}
	if strings.Contains(f.log.String(), "123456") {
		t.Error("debug log contains the OTP code")
	}
	if !strings.Contains(f.log.String(), sess.ID) {
		t.Error("debug log entries should carry the session ID")
	}
}

func TestRun_DirtyTreeStopsBeforeChanges(t *testing.T) {
	f := newFixture(t)
	f.script.On("git diff-index", runnertest.Fail(1, ""))
	p := f.pipeline("", Options{})

	err := p.Run(context.Background())
	if !errors.Is(err, errors.ErrDirtyWorktree) {
		t.Fatalf("Run() error = %v, want ErrDirtyWorktree", err)
	}
	if errors.ExitCode(err) == 0 {
		t.Error("dirty tree should exit nonzero")
	}
	for _, prefix := range []string{"git checkout", "lerna", "git merge", "git push"} {
		if f.script.Called(prefix) {
			t.Errorf("%q ran on a dirty tree", prefix)
		}
	}
	if p.Session().State != session.StateFailed {
		t.Errorf("State = %s, want failed", p.Session().State)
	}
}

func TestRun_OnReleaseBranch(t *testing.T) {
	f := newFixture(t)
	f.script.On("git rev-parse --abbrev-ref HEAD", runnertest.Ok("release/v1.2.3\n"))
	p := f.pipeline("", Options{})

	err := p.Run(context.Background())
	if !errors.Is(err, errors.ErrOnReleaseBranch) {
		t.Fatalf("Run() error = %v, want ErrOnReleaseBranch", err)
	}
	if !strings.Contains(err.Error(), "git checkout main") {
		t.Errorf("error should suggest switching away: %v", err)
	}
	if f.script.Called("git checkout -b") {
		t.Error("branch created from a release branch")
	}
}

func TestRun_DefaultBranchFallback(t *testing.T) {
	f := newFixture(t)
	f.script.
		On("git symbolic-ref refs/remotes/origin/HEAD", runnertest.Fail(128, "fatal: ref refs/remotes/origin/HEAD is not a symbolic ref")).
		On("git rev-parse --verify", runnertest.Fail(1, ""))
	f.cfg.Git.FallbackDefaultBranch = "trunk"
	p := f.pipeline("", Options{DryRun: true})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.Session().DefaultBranch != "trunk" {
		t.Errorf("DefaultBranch = %q, want trunk", p.Session().DefaultBranch)
	}
	if !strings.Contains(f.out.String(), "Could not detect default branch, using trunk") {
		t.Errorf("transcript = %s", f.out.String())
	}

	t.Run("no fallback", func(t *testing.T) {
		g := newFixture(t)
		g.script.
			On("git symbolic-ref refs/remotes/origin/HEAD", runnertest.Fail(128, "fatal")).
			On("git rev-parse --verify", runnertest.Fail(1, ""))
		g.cfg.Git.FallbackDefaultBranch = ""

		err := g.pipeline("", Options{DryRun: true}).Run(context.Background())
		if !errors.Is(err, errors.ErrBranchNotDetected) {
			t.Errorf("Run() error = %v, want ErrBranchNotDetected", err)
		}
	})
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline("", Options{DryRun: true})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.Session().State != session.StateDryRun {
		t.Errorf("State = %s, want dry_run", p.Session().State)
	}
	for _, prefix := range []string{"git checkout", "lerna publish --yes", "git merge", "git push", "git branch"} {
		if f.script.Called(prefix) {
			t.Errorf("%q ran during a dry run", prefix)
		}
	}
	if !strings.Contains(f.out.String(), "release/v1.2.4") {
		t.Errorf("dry run should name the release branch:\n%s", f.out.String())
	}
}

func TestRun_DryRunFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.script.On("lerna version --no-git-tag-version", runnertest.Fail(1, "lerna ERR! ENOLERNA"))
	p := f.pipeline("yes\n", Options{})

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want dry-run failure")
	}
	if f.script.Called("git checkout -b") {
		t.Error("branch created after a failed dry-run")
	}
	if !strings.Contains(f.out.String(), "ENOLERNA") {
		t.Error("dry-run output should be shown to the operator")
	}
}

func TestRun_ReportThatModifiesTreeIsFatal(t *testing.T) {
	f := newFixture(t)
	f.cfg.Registry.DryRunArgs = []string{"version", "--no-push"}
	f.script.On("git diff-index", runnertest.Ok(""), runnertest.Fail(1, ""))
	p := f.pipeline("yes\n", Options{})

	err := p.Run(context.Background())
	var verr *errors.ValidationError
	if !errors.As(err, &verr) || verr.Field != "registry.dry_run_args" {
		t.Fatalf("Run() error = %v, want registry.dry_run_args validation error", err)
	}
	if !errors.Is(err, errors.ErrDirtyWorktree) {
		t.Error("error should report the dirty worktree")
	}
	if f.script.Called("git checkout -b") || f.script.Called("lerna publish") {
		t.Errorf("ran past a mutating report: %v", f.script.Calls())
	}
	if n := f.script.Count("git diff-index"); n != 2 {
		t.Errorf("clean checks = %d, want 2", n)
	}
}

func TestRun_MultiPackageReportUsesTimestampTag(t *testing.T) {
	f := newFixture(t)
	f.script.On("lerna version --no-git-tag-version", runnertest.Ok(
		"Changes:\n - @fpkit/acss: 1.2.3 => 1.2.4\n - @fpkit/cli: 0.4.0 => 0.5.0\n"))
	p := f.pipeline("", Options{DryRun: true})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := p.Session().TargetVersion; got != "multi-20240309-140507" {
		t.Errorf("TargetVersion = %q", got)
	}
	if !strings.Contains(f.out.String(), "release/vmulti-20240309-140507") {
		t.Errorf("transcript = %s", f.out.String())
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline("no\n", Options{})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if p.Session().State != session.StateCancelled {
		t.Errorf("State = %s, want cancelled", p.Session().State)
	}
	if f.script.Called("git checkout -b") || f.script.Called("lerna publish --yes") {
		t.Errorf("changes made after cancel: %v", f.script.Calls())
	}
	if !strings.Contains(f.out.String(), "Publish cancelled.") {
		t.Errorf("transcript = %s", f.out.String())
	}
}

func TestRun_BranchExists(t *testing.T) {
	f := newFixture(t)
	f.script.On("git checkout -b", runnertest.Fail(128, "fatal: a branch named 'release/v1.2.4' already exists"))
	p := f.pipeline("yes\n", Options{})

	err := p.Run(context.Background())
	if !errors.Is(err, errors.ErrBranchExists) {
		t.Fatalf("Run() error = %v, want ErrBranchExists", err)
	}
	if f.script.Called("lerna publish --yes") {
		t.Error("published without a release branch")
	}
	if p.Session().Branch != nil {
		t.Errorf("Branch = %+v, want nil", p.Session().Branch)
	}
}

func TestRun_ExhaustedWithCleanup(t *testing.T) {
	f := newFixture(t)
	f.script.On("lerna publish --yes", runnertest.Fail(1, "npm ERR! code EOTP\nnpm ERR! OTP invalid"))
	p := f.pipeline("yes\n111111\n222222\n333333\nyes\n", Options{})

	err := p.Run(context.Background())

	var exhausted *errors.PublishExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run() error = %v, want PublishExhaustedError", err)
	}
	if exhausted.Attempts != 3 || exhausted.Preserved {
		t.Errorf("PublishExhaustedError = %+v", exhausted)
	}
	if n := f.script.Count("lerna publish --yes"); n != 3 {
		t.Errorf("publish attempts = %d, want 3", n)
	}
	if !f.script.Called("git checkout main") || !f.script.Called("git branch -D release/v1.2.4") {
		t.Errorf("cleanup did not run: %v", f.script.Calls())
	}
	if f.script.Called("git merge") {
		t.Error("merge-back ran after a failed publish")
	}
	if p.Session().State != session.StateFailed {
		t.Errorf("State = %s, want failed", p.Session().State)
	}
}

func TestRun_ExhaustedBranchPreserved(t *testing.T) {
	f := newFixture(t)
	f.script.On("lerna publish --yes", runnertest.Fail(1, "npm ERR! OTP expired"))
	p := f.pipeline("yes\n111111\n222222\n333333\nno\n", Options{})

	err := p.Run(context.Background())

	var exhausted *errors.PublishExhaustedError
	if !errors.As(err, &exhausted) || !exhausted.Preserved {
		t.Fatalf("Run() error = %v, want preserved PublishExhaustedError", err)
	}
	if f.script.Called("git branch -D") {
		t.Error("release branch deleted after the operator declined")
	}
	if !strings.Contains(f.out.String(), "git branch -D release/v1.2.4") {
		t.Errorf("manual cleanup commands missing:\n%s", f.out.String())
	}
}

func TestRun_PublishInterruptedKeepsBranchWithoutPrompt(t *testing.T) {
	t.Run("input ends", func(t *testing.T) {
		f := newFixture(t)
		p := f.pipeline("yes\n", Options{})

		err := p.Run(context.Background())
		if !errors.Is(err, prompt.ErrNoInput) {
			t.Fatalf("Run() error = %v, want ErrNoInput", err)
		}
		assertBranchKeptWithoutPrompt(t, f)
		if !strings.Contains(err.Error(), "publish of release/v1.2.4 aborted") {
			t.Errorf("Error() = %q", err.Error())
		}
		if !strings.Contains(f.log.String(), `"recoverable":false`) {
			t.Errorf("log should record recoverability:\n%s", f.log.String())
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		r := cancelAfter{Runner: f.script, prefix: "git checkout -b", cancel: cancel}
		p := f.pipelineWith(vcs.NewClientWithRunner(f.dir, r), r, "yes\n123456\n", Options{})

		err := p.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
		assertBranchKeptWithoutPrompt(t, f)
	})
}

// cancelAfter cancels the run once a command starting with prefix returns.
type cancelAfter struct {
	runner.Runner
	prefix string
	cancel context.CancelFunc
}

func (c cancelAfter) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	res, err := c.Runner.Run(ctx, cmd)
	if strings.HasPrefix(cmd.String(), c.prefix) {
		c.cancel()
	}
	return res, err
}

func assertBranchKeptWithoutPrompt(t *testing.T, f *fixture) {
	t.Helper()
	transcript := f.out.String()
	if strings.Contains(transcript, "Delete release branch") {
		t.Errorf("cleanup prompt shown for an interrupted publish:\n%s", transcript)
	}
	if f.script.Called("git branch -D") || f.script.Called("git checkout main") {
		t.Errorf("branch removed without confirmation: %v", f.script.Calls())
	}
	for _, s := range []string{"Release branch preserved: release/v1.2.4", "git checkout main", "git branch -D release/v1.2.4"} {
		if !strings.Contains(transcript, s) {
			t.Errorf("transcript missing %q:\n%s", s, transcript)
		}
	}
}

func TestRun_MalformedCodesDoNotConsumeAttempts(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline("yes\n12345\nabcdef\n654321\n", Options{})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := f.script.Count("lerna publish --yes"); n != 1 {
		t.Errorf("publish attempts = %d, want 1", n)
	}
	if p.Session().Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", p.Session().Attempts)
	}
}

func TestRun_MergeFailure(t *testing.T) {
	f := newFixture(t)
	f.script.On("git merge", runnertest.Fail(1, "CONFLICT (content): Merge conflict in CHANGELOG.md"))
	p := f.pipeline("yes\n123456\n", Options{})

	err := p.Run(context.Background())

	var merr *errors.MergeFailedError
	if !errors.As(err, &merr) {
		t.Fatalf("Run() error = %v, want MergeFailedError", err)
	}
	if merr.Step != "merge" {
		t.Errorf("Step = %q", merr.Step)
	}
	if f.script.Called("git push") || f.script.Called("git branch -d") {
		t.Errorf("ran past a failed merge: %v", f.script.Calls())
	}
	if p.Session().Branch.Merged {
		t.Error("branch marked merged")
	}
}

func TestRun_Interactive(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "lerna.json", `{"version": "6.0.3"}`)
	p := f.pipeline("2\nyes\n123456\n", Options{Interactive: true})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v\n%s", err, f.out.String())
	}
	if f.script.Called("lerna version --no-git-tag-version") {
		t.Error("interactive mode should not run the dry-run report")
	}
	if !f.script.Called("git checkout -b release/v6.1.0") {
		t.Errorf("calls = %v", f.script.Calls())
	}
	if !f.script.Called("lerna publish minor --yes --otp 123456") {
		t.Errorf("calls = %v", f.script.Calls())
	}
	if p.Session().CurrentVersion != "6.0.3" {
		t.Errorf("CurrentVersion = %q", p.Session().CurrentVersion)
	}
}

func TestRun_Preflight(t *testing.T) {
	t.Run("missing script is skipped", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Preflight.Script = "scripts/preflight.sh"

		if err := f.pipeline("", Options{DryRun: true}).Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !strings.Contains(f.out.String(), "not found, skipping") {
			t.Errorf("transcript = %s", f.out.String())
		}
	})

	t.Run("failure stops the run", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Preflight.Script = "preflight.sh"
		f.writeFile(t, "preflight.sh", "#!/bin/bash\nexit 1\n")
		f.script.On("bash", runnertest.Fail(1, "tests failed"))

		err := f.pipeline("", Options{DryRun: true}).Run(context.Background())
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Fatalf("Run() error = %v, want validation error", err)
		}
		if f.script.Called("git") {
			t.Errorf("git ran after failed pre-flight: %v", f.script.Calls())
		}
	})
}

func TestRun_VerifyMismatchIsWarning(t *testing.T) {
	f := newFixture(t)
	f.cfg.Registry.VerifyPackage = "@fpkit/acss"
	f.script.On("npm view @fpkit/acss version", runnertest.Ok("1.2.3\n"))
	p := f.pipeline("yes\n123456\n", Options{})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(f.out.String(), "Version mismatch: expected 1.2.4, got 1.2.3") {
		t.Errorf("transcript = %s", f.out.String())
	}
	if p.Session().State != session.StateCompleted {
		t.Errorf("State = %s", p.Session().State)
	}
}

func TestRun_RealRepository(t *testing.T) {
	testutil.RequireGit(t)
	repoDir, _ := testutil.SetupTestRepoWithRemote(t)

	f := newFixture(t)
	f.dir = repoDir
	tool := runnertest.New().On("lerna version --no-git-tag-version", runnertest.Ok(singleReport))
	p := f.pipelineWith(vcs.NewClient(repoDir), tool, "yes\n123456\n", Options{})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v\n%s", err, f.out.String())
	}
	if got := testutil.CurrentBranch(t, repoDir); got != "main" {
		t.Errorf("current branch = %q, want main", got)
	}
	if testutil.BranchExists(t, repoDir, "refs/heads/release/v1.2.4") {
		t.Error("local release branch should be deleted")
	}
	if !tool.Called("lerna publish --yes --otp 123456") {
		t.Errorf("tool calls = %v", tool.Calls())
	}
}

func TestRun_RealRepositoryDirty(t *testing.T) {
	testutil.RequireGit(t)
	repoDir, _ := testutil.SetupTestRepoWithRemote(t)
	testutil.WriteFile(t, repoDir, "README.md", "modified\n")

	f := newFixture(t)
	f.dir = repoDir
	tool := runnertest.New()
	p := f.pipelineWith(vcs.NewClient(repoDir), tool, "yes\n", Options{})

	if err := p.Run(context.Background()); !errors.Is(err, errors.ErrDirtyWorktree) {
		t.Fatalf("Run() error = %v, want ErrDirtyWorktree", err)
	}
	if len(tool.Calls()) != 0 {
		t.Errorf("publish tool ran on a dirty tree: %v", tool.Calls())
	}
	if testutil.BranchExists(t, repoDir, "refs/heads/release/v1.2.4") {
		t.Error("release branch created on a dirty tree")
	}
}
