// Package release runs one publish session end to end.
//
// A Pipeline walks a session through its stages in a fixed order:
//
//	inspect -> validate -> plan -> [dry run exits] -> confirm ->
//	create branch -> publish (OTP loop) -> merge back -> verify
//
// Nothing in the repository is changed before the operator confirms. After
// the release branch exists, every failure path either removes it with the
// operator's consent or leaves it in place and prints the commands that
// finish the job by hand.
//
// # Basic Usage
//
//	p := release.New(cfg, release.Deps{
//	    Repo:     vcs.NewClient(dir),
//	    Registry: registry.NewClient(dir, cfg.Registry, runner.New()),
//	    Prompter: prompt.New(os.Stdin, out),
//	    Out:      out,
//	    Logger:   logger,
//	}, release.Options{DryRun: dryRun})
//
//	if err := p.Run(ctx); err != nil {
//	    return err
//	}
package release
