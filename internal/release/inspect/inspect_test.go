package inspect

import (
	"context"
	"strings"
	"testing"

	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/runner/runnertest"
	"github.com/Iron-Ham/relpub/internal/testutil"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

var candidates = []string{"main", "master"}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		script      func(s *runnertest.Script)
		wantCurrent string
		wantDefault string
		wantErr     bool
	}{
		{
			name: "remote head",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse --abbrev-ref HEAD", runnertest.Ok("feature/x\n"))
				s.On("git symbolic-ref refs/remotes/origin/HEAD", runnertest.Ok("refs/remotes/origin/trunk\n"))
			},
			wantCurrent: "feature/x",
			wantDefault: "trunk",
		},
		{
			name: "first existing candidate",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse --abbrev-ref HEAD", runnertest.Ok("feature/x"))
				s.On("git symbolic-ref", runnertest.Fail(128, "fatal: ref refs/remotes/origin/HEAD is not a symbolic ref"))
				s.On("git rev-parse --verify --quiet main", runnertest.Fail(1, ""))
				s.On("git rev-parse --verify --quiet master", runnertest.Ok("abc123"))
			},
			wantCurrent: "feature/x",
			wantDefault: "master",
		},
		{
			name: "nothing resolves",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse --abbrev-ref HEAD", runnertest.Ok("feature/x"))
				s.On("git symbolic-ref", runnertest.Fail(128, "fatal"))
				s.On("git rev-parse --verify", runnertest.Fail(1, ""))
			},
			wantCurrent: "feature/x",
			wantErr:     true,
		},
		{
			name: "current branch unreadable",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse --abbrev-ref HEAD", runnertest.Fail(128, "fatal: not a git repository"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := runnertest.New()
			tt.script(script)
			insp := NewInspector(vcs.NewClientWithRunner("/repo", script), "origin", candidates)

			current, def, err := insp.Detect(context.Background())
			if tt.wantErr {
				var derr *errors.DetectionError
				if !errors.As(err, &derr) {
					t.Fatalf("Detect() error = %v, want DetectionError", err)
				}
				if !errors.Is(err, errors.ErrBranchNotDetected) {
					t.Error("DetectionError should match ErrBranchNotDetected")
				}
			} else if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if current != tt.wantCurrent || def != tt.wantDefault {
				t.Errorf("Detect() = (%q, %q), want (%q, %q)", current, def, tt.wantCurrent, tt.wantDefault)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		current     string
		script      func(s *runnertest.Script)
		wantErr     error
		wantWarning string
	}{
		{
			name:    "clean and in sync",
			current: "main",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse @", runnertest.Ok("abc"))
				s.On("git rev-parse @{u}", runnertest.Ok("abc"))
			},
		},
		{
			name:    "dirty tree",
			current: "main",
			script: func(s *runnertest.Script) {
				s.On("git diff-index --quiet HEAD", runnertest.Fail(1, ""))
			},
			wantErr: errors.ErrDirtyWorktree,
		},
		{
			name:    "already on release branch",
			current: "release/v1.2.3",
			script:  func(s *runnertest.Script) {},
			wantErr: errors.ErrOnReleaseBranch,
		},
		{
			name:    "behind remote",
			current: "main",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse @", runnertest.Ok("abc"))
				s.On("git rev-parse @{u}", runnertest.Ok("def"))
			},
			wantWarning: "main is not up to date with origin",
		},
		{
			name:    "fetch fails",
			current: "main",
			script: func(s *runnertest.Script) {
				s.On("git fetch", runnertest.Fail(128, "fatal: unable to access"))
			},
			wantWarning: "could not verify remote status",
		},
		{
			name:    "no upstream",
			current: "main",
			script: func(s *runnertest.Script) {
				s.On("git rev-parse @", runnertest.Ok("abc"))
				s.On("git rev-parse @{u}", runnertest.Fail(128, "fatal: no upstream configured"))
			},
			wantWarning: "could not verify remote status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := runnertest.New()
			tt.script(script)
			v := NewValidator(vcs.NewClientWithRunner("/repo", script), "origin", "release/")

			warnings, err := v.Validate(context.Background(), tt.current, "main")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.IsPrecondition(err) {
					t.Error("validation errors should be preconditions")
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			got := strings.Join(warnings, "; ")
			if got != tt.wantWarning {
				t.Errorf("warnings = %q, want %q", got, tt.wantWarning)
			}
		})
	}
}

func TestValidate_AlreadyOnReleaseMessage(t *testing.T) {
	v := NewValidator(vcs.NewClientWithRunner("/repo", runnertest.New()), "origin", "release/")
	_, err := v.Validate(context.Background(), "release/v2.0.0", "develop")
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "release/v2.0.0") || !strings.Contains(msg, "git checkout develop") {
		t.Errorf("error message = %q", msg)
	}
}

func TestInspect_RealRepository(t *testing.T) {
	testutil.RequireGit(t)
	repoDir, _ := testutil.SetupTestRepoWithRemote(t)
	client := vcs.NewClient(repoDir)
	ctx := context.Background()

	current, def, err := NewInspector(client, "origin", candidates).Detect(ctx)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if current != "main" || def != "main" {
		t.Errorf("Detect() = (%q, %q)", current, def)
	}

	v := NewValidator(client, "origin", "release/")
	warnings, err := v.Validate(ctx, current, def)
	if err != nil || len(warnings) != 0 {
		t.Errorf("Validate() = %v, %v", warnings, err)
	}

	testutil.WriteFile(t, repoDir, "README.md", "changed\n")
	if _, err := v.Validate(ctx, current, def); !errors.Is(err, errors.ErrDirtyWorktree) {
		t.Errorf("Validate() on dirty tree error = %v", err)
	}
}
