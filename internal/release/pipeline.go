package release

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/relpub/internal/config"
	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/logging"
	"github.com/Iron-Ham/relpub/internal/prompt"
	"github.com/Iron-Ham/relpub/internal/registry"
	"github.com/Iron-Ham/relpub/internal/release/branch"
	"github.com/Iron-Ham/relpub/internal/release/inspect"
	"github.com/Iron-Ham/relpub/internal/release/mergeback"
	"github.com/Iron-Ham/relpub/internal/release/otp"
	"github.com/Iron-Ham/relpub/internal/release/session"
	"github.com/Iron-Ham/relpub/internal/release/version"
	"github.com/Iron-Ham/relpub/internal/ui"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

// Options control a single run.
type Options struct {
	// DryRun stops after planning: no branch, no publish, no merge.
	DryRun bool
	// Interactive forces the interactive version strategy.
	Interactive bool
	// Now is the clock for timestamp tags. Defaults to time.Now.
	Now func() time.Time
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Repo     vcs.Repository
	Registry *registry.Client
	Prompter *prompt.Prompter
	Out      *ui.Printer
	Logger   *logging.Logger
}

// Pipeline runs one release session from inspection to merge-back.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
	opts Options
	sess *session.Session
	log  *logging.Logger

	branches *branch.Manager
}

// New creates a Pipeline with a fresh session.
func New(cfg *config.Config, deps Deps, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}

	sess := session.New(opts.DryRun)
	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		opts:     opts,
		sess:     sess,
		log:      deps.Logger.WithSession(sess.ID),
		branches: branch.NewManager(deps.Repo, cfg.Release.BranchPrefix),
	}
}

// Session returns the session record. It is complete once Run returns.
func (p *Pipeline) Session() *session.Session {
	return p.sess
}

// Run executes the release. It returns nil on success, on a dry run, and
// when the operator cancels before anything was changed.
func (p *Pipeline) Run(ctx context.Context) error {
	out := p.deps.Out
	out.Header("Release Publisher")
	p.log.Info("session started", "dry_run", p.opts.DryRun, "repo", p.deps.Registry.Dir())

	if err := p.preflight(ctx); err != nil {
		return p.fail("preflight", err)
	}
	if err := p.inspect(ctx); err != nil {
		return p.fail("inspect", err)
	}
	if err := p.validate(ctx); err != nil {
		return p.fail("validate", err)
	}
	plan, err := p.plan(ctx)
	if err != nil {
		return p.fail("plan", err)
	}

	name := p.branches.Name(plan.Target)
	out.Info("Release branch: %s", name)
	p.printSummary(plan, name)

	if p.opts.DryRun {
		out.Blank()
		out.Warning("Dry run: no branch created, nothing published.")
		p.sess.Advance(session.StateDryRun)
		p.log.Info("dry run complete", "target_version", plan.Target)
		return nil
	}

	out.Blank()
	proceed, err := p.deps.Prompter.Confirm("Proceed with publish? (yes/no):")
	if err != nil {
		return p.fail("confirm", err)
	}
	if !proceed {
		out.Warning("Publish cancelled.")
		p.sess.Advance(session.StateCancelled)
		p.log.Info("cancelled by operator")
		return nil
	}

	if err := p.createBranch(ctx, plan); err != nil {
		return p.fail("branch", err)
	}
	if err := p.publish(ctx); err != nil {
		return p.fail("publish", err)
	}
	if err := p.mergeBack(ctx); err != nil {
		return p.fail("merge", err)
	}

	p.verify(ctx, plan)
	p.printNextSteps()
	p.sess.Advance(session.StateCompleted)
	p.log.Info("session completed", "target_version", p.sess.TargetVersion)
	return nil
}

func (p *Pipeline) fail(stage string, err error) error {
	if !p.sess.State.IsTerminal() {
		p.sess.Advance(session.StateFailed)
	}
	p.log.WithStage(stage).Error("session failed",
		"error", err.Error(),
		"severity", errors.GetSeverity(err).String(),
		"precondition", errors.IsPrecondition(err),
		"recoverable", errors.IsRecoverable(err),
	)
	return err
}

func (p *Pipeline) preflight(ctx context.Context) error {
	script := p.cfg.Preflight.Script
	if script == "" {
		return nil
	}

	out := p.deps.Out
	out.Info("Running pre-flight checks: %s", script)
	err := p.deps.Registry.RunScript(ctx, script)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out.Warning("Pre-flight script %s not found, skipping", script)
		return nil
	case err != nil:
		out.Error("Pre-flight checks failed")
		return err
	}
	out.Success("Pre-flight checks passed")
	return nil
}

func (p *Pipeline) inspect(ctx context.Context) error {
	out := p.deps.Out
	g := p.cfg.Git
	insp := inspect.NewInspector(p.deps.Repo, g.Remote, g.DefaultBranchCandidates)

	current, def, err := insp.Detect(ctx)
	if err != nil {
		var derr *errors.DetectionError
		if current == "" || g.FallbackDefaultBranch == "" || !errors.As(err, &derr) {
			return err
		}
		def = g.FallbackDefaultBranch
		out.Warning("Could not detect default branch, using %s", def)
		p.log.WithStage("inspect").Warn("default branch fallback", "default_branch", def)
	}

	p.sess.CurrentBranch = current
	p.sess.DefaultBranch = def
	p.sess.Advance(session.StateInspected)

	out.Info("Current branch: %s", current)
	out.Info("Default branch: %s", def)
	return nil
}

func (p *Pipeline) validate(ctx context.Context) error {
	out := p.deps.Out
	v := inspect.NewValidator(p.deps.Repo, p.cfg.Git.Remote, p.cfg.Release.BranchPrefix)

	warnings, err := v.Validate(ctx, p.sess.CurrentBranch, p.sess.DefaultBranch)
	if err != nil {
		return err
	}
	out.Success("Working directory clean")
	for _, w := range warnings {
		out.Warning("%s", w)
		p.log.WithStage("validate").Warn(w)
	}

	p.sess.Advance(session.StateValidated)
	return nil
}

func (p *Pipeline) plan(ctx context.Context) (version.Plan, error) {
	var (
		plan version.Plan
		err  error
	)
	if p.opts.Interactive || p.cfg.Version.Strategy == config.StrategyInteractive {
		plan, err = p.planInteractive()
	} else {
		plan, err = p.planFromReport(ctx)
	}
	if err != nil {
		return version.Plan{}, err
	}

	p.sess.TargetVersion = plan.Target
	p.sess.PublishArg = plan.PublishArg
	p.sess.Advance(session.StatePlanned)
	p.deps.Out.Success("Target version: %s", plan.Target)
	p.log.WithStage("plan").Info("version planned",
		"target_version", plan.Target,
		"bump", plan.Bump.String(),
		"synthetic", plan.Synthetic,
	)
	return plan, nil
}

func (p *Pipeline) planInteractive() (version.Plan, error) {
	current, err := p.deps.Registry.CurrentVersion()
	if err != nil {
		return version.Plan{}, err
	}
	if !version.IsSemver(current) {
		return version.Plan{}, errors.NewValidationError("current version is not a semantic version").
			WithField("version").
			WithValue(current)
	}
	p.sess.CurrentVersion = current
	p.deps.Out.Info("Current version: %s", current)

	return version.NewInteractive(p.deps.Prompter, p.deps.Out).Plan(current)
}

func (p *Pipeline) planFromReport(ctx context.Context) (version.Plan, error) {
	out := p.deps.Out
	out.Info("Running dry-run to preview version changes...")

	report, err := p.deps.Registry.DryRun(ctx)
	if report != "" {
		out.Println("%s", report)
	}
	if err != nil {
		return version.Plan{}, err
	}
	if err := p.checkReportLeftTreeClean(ctx); err != nil {
		return version.Plan{}, err
	}

	if current, err := p.deps.Registry.CurrentVersion(); err == nil {
		p.sess.CurrentVersion = current
	}

	plan := version.FromReport(report, p.opts.Now())
	if plan.Synthetic {
		if len(plan.Changes) == 0 {
			out.Warning("No version changes found in dry-run output, using tag %s", plan.Target)
		} else {
			out.Warning("Found %d version changes, using tag %s", len(plan.Changes), plan.Target)
		}
	}
	return plan, nil
}

// checkReportLeftTreeClean stops the run when the report command wrote to
// the working tree, which happens when dry_run_args name a mutating command.
func (p *Pipeline) checkReportLeftTreeClean(ctx context.Context) error {
	clean, err := p.deps.Repo.IsClean(ctx)
	if err != nil {
		return err
	}
	if clean {
		return nil
	}
	p.deps.Out.Error("The dry-run report modified the working tree")
	return errors.NewValidationError("report command modified the working tree; review and revert the changes").
		WithField("registry.dry_run_args").
		WithValue(strings.Join(p.cfg.Registry.DryRunArgs, " ")).
		WithCause(errors.ErrDirtyWorktree)
}

func (p *Pipeline) printSummary(plan version.Plan, branchName string) {
	rows := [][2]string{}
	if pkg := p.cfg.Registry.VerifyPackage; pkg != "" {
		rows = append(rows, [2]string{"Package", pkg})
	}
	if p.sess.CurrentVersion != "" {
		rows = append(rows, [2]string{"Current", p.sess.CurrentVersion})
	}
	bump := plan.PublishArg
	if bump == "" {
		bump = "as reported by " + p.cfg.Registry.Command
	}
	rows = append(rows,
		[2]string{"Target", plan.Target},
		[2]string{"Bump", bump},
		[2]string{"Release branch", branchName},
		[2]string{"From branch", p.sess.CurrentBranch},
		[2]string{"Merge into", p.sess.DefaultBranch},
	)
	p.deps.Out.Summary("Publishing Summary", rows)
}

func (p *Pipeline) createBranch(ctx context.Context, plan version.Plan) error {
	rb, err := p.branches.Create(ctx, plan.Target)
	if err != nil {
		p.deps.Out.Error("Failed to create release branch: %v", err)
		return err
	}
	if err := p.sess.TrackBranch(rb); err != nil {
		return err
	}
	p.sess.Advance(session.StateBranchCreated)
	p.deps.Out.Success("Created branch: %s", rb.Name)
	p.log.WithStage("branch").Info("release branch created", "release_branch", rb.Name)
	return nil
}

func (p *Pipeline) publish(ctx context.Context) error {
	out := p.deps.Out
	out.Header("Publishing to npm")

	loop := otp.NewLoop(p.deps.Registry, p.deps.Prompter, out, p.log.WithStage("publish"), p.cfg.Release.MaxOTPRetries)
	err := loop.Run(ctx, p.sess, p.sess.PublishArg)
	if err == nil {
		p.sess.Advance(session.StatePublished)
		return nil
	}

	var exhausted *errors.PublishExhaustedError
	if !errors.As(err, &exhausted) {
		// Cancelled or out of input: leave the branch and say how to remove it.
		name := p.sess.Branch.Name
		out.Warning("Release branch preserved: %s", name)
		out.Info("To clean up manually:")
		out.Commands(branch.CleanupCommands(p.sess.CurrentBranch, name))
		return errors.Wrapf(err, "publish of %s aborted", name)
	}

	deleted, cleanupErr := p.branches.OfferCleanup(ctx, p.sess, p.deps.Prompter, out)
	if cleanupErr != nil {
		p.log.WithStage("cleanup").Warn("cleanup incomplete", "error", cleanupErr.Error())
	}
	return exhausted.WithPreserved(!deleted)
}

func (p *Pipeline) mergeBack(ctx context.Context) error {
	c := mergeback.NewCoordinator(p.deps.Repo, p.cfg.Git.Remote, p.cfg.Release.MergeMessage,
		p.deps.Out, p.log.WithStage("merge"))
	if err := c.Merge(ctx, p.sess); err != nil {
		return err
	}
	p.sess.Advance(session.StateMerged)
	return nil
}

// verify checks the registry for the published version. Mismatches and
// lookup failures are warnings.
func (p *Pipeline) verify(ctx context.Context, plan version.Plan) {
	pkg := p.cfg.Registry.VerifyPackage
	if pkg == "" || plan.Synthetic || !version.IsSemver(plan.Target) {
		return
	}

	out := p.deps.Out
	out.Info("Verifying publication on npm registry...")
	got, err := p.deps.Registry.ViewVersion(ctx, pkg)
	switch {
	case err != nil:
		out.Warning("Failed to verify publication: %v", err)
	case got != plan.Target:
		out.Warning("Version mismatch: expected %s, got %s", plan.Target, got)
	default:
		out.Success("Package published successfully: %s@%s", pkg, got)
	}
}

func (p *Pipeline) printNextSteps() {
	out := p.deps.Out
	out.Header("✓ Publish Complete!")
	out.Info("Next steps:")

	steps := []string{"git log --oneline -1 " + p.sess.DefaultBranch}
	if pkg := p.cfg.Registry.VerifyPackage; pkg != "" {
		steps = append(steps, "npm view "+pkg+" version", "npm view "+pkg+" time")
	}
	out.Commands(steps)
}
