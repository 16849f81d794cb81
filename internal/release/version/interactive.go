package version

import (
	"github.com/Iron-Ham/relpub/internal/prompt"
	"github.com/Iron-Ham/relpub/internal/ui"
)

// Interactive asks the operator for the bump category.
type Interactive struct {
	prompter *prompt.Prompter
	out      *ui.Printer
}

// NewInteractive creates an Interactive planner.
func NewInteractive(p *prompt.Prompter, out *ui.Printer) *Interactive {
	return &Interactive{prompter: p, out: out}
}

// Choose runs the bump menu until a choice is settled. Declining the major
// confirmation and invalid input both return to the menu.
func (i *Interactive) Choose(current string) (BumpSpec, error) {
	i.out.Info("Select version bump type:")
	i.out.Println("  1) patch  - Bug fixes (%s)", i.example(current, KindPatch))
	i.out.Println("  2) minor  - New features (%s)", i.example(current, KindMinor))
	i.out.Println("  3) major  - Breaking changes (%s)", i.example(current, KindMajor))
	i.out.Println("  4) custom - Specify exact version")

	for {
		i.out.Blank()
		choice, err := i.prompter.Line("Enter choice [1-4]:")
		if err != nil {
			return BumpSpec{}, err
		}

		switch choice {
		case "1":
			return BumpSpec{Kind: KindPatch}, nil
		case "2":
			return BumpSpec{Kind: KindMinor}, nil
		case "3":
			ok, err := i.prompter.Confirm("Major version bump! Are you sure? [y/N]:")
			if err != nil {
				return BumpSpec{}, err
			}
			if ok {
				return BumpSpec{Kind: KindMajor}, nil
			}
			i.out.Info("Major version bump cancelled. Please choose another option.")
		case "4":
			v, err := i.explicit()
			if err != nil {
				return BumpSpec{}, err
			}
			return Explicit(v), nil
		default:
			i.out.Error("Invalid choice. Please enter 1-4.")
		}
	}
}

func (i *Interactive) explicit() (string, error) {
	for {
		v, err := i.prompter.Line("Enter version (e.g., 6.1.0):")
		if err != nil {
			return "", err
		}
		if ValidExplicit(v) {
			return v, nil
		}
		i.out.Error("Invalid version format. Use semantic versioning (e.g., 6.1.0)")
	}
}

// Plan chooses a bump and resolves it against current. An explicit version
// that does not move forward is allowed with a warning.
func (i *Interactive) Plan(current string) (Plan, error) {
	bump, err := i.Choose(current)
	if err != nil {
		return Plan{}, err
	}

	target, err := Target(current, bump)
	if err != nil {
		return Plan{}, err
	}
	if bump.Kind == KindExplicit && IsSemver(current) && Compare(target, current) <= 0 {
		i.out.Warning("Version %s is not greater than current version %s", target, current)
	}

	return Plan{Bump: bump, Target: target, PublishArg: bump.Arg()}, nil
}

func (i *Interactive) example(current string, kind Kind) string {
	next, err := Bump(current, kind)
	if err != nil {
		return string(kind)
	}
	return current + " → " + next
}
