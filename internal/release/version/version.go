// Package version decides the target version of a release, either from the
// publish tool's dry-run report or by asking the operator.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/Iron-Ham/relpub/internal/errors"
)

// Kind is a version bump category.
type Kind string

const (
	KindPatch    Kind = "patch"
	KindMinor    Kind = "minor"
	KindMajor    Kind = "major"
	KindExplicit Kind = "explicit"
)

// explicitPattern is the only accepted shape for operator-entered versions.
var explicitPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// BumpSpec is the immutable outcome of version negotiation.
type BumpSpec struct {
	Kind Kind
	// Explicit is the literal version when Kind is KindExplicit.
	Explicit string
}

// Explicit returns a BumpSpec for a literal version.
func Explicit(v string) BumpSpec {
	return BumpSpec{Kind: KindExplicit, Explicit: v}
}

// Arg is the bump argument understood by lerna: the keyword, or the literal
// version for explicit bumps.
func (b BumpSpec) Arg() string {
	if b.Kind == KindExplicit {
		return b.Explicit
	}
	return string(b.Kind)
}

func (b BumpSpec) String() string {
	if b.Kind == KindExplicit {
		return b.Explicit
	}
	return string(b.Kind)
}

// Plan is a resolved version decision.
type Plan struct {
	Bump BumpSpec
	// Target names the release branch.
	Target string
	// PublishArg is passed to the publish command. Empty lets the tool pick
	// the versions it reported during the dry run.
	PublishArg string
	// Changes are the version changes found in the dry-run report.
	Changes []Change
	// Synthetic is true when Target is a timestamp tag, not a version.
	Synthetic bool
}

// ValidExplicit reports whether v is a plain digits.digits.digits version.
func ValidExplicit(v string) bool {
	return explicitPattern.MatchString(v)
}

// IsSemver reports whether v is a semantic version without a "v" prefix.
func IsSemver(v string) bool {
	return !strings.HasPrefix(v, "v") && semver.IsValid("v"+v)
}

// Compare returns -1, 0, or +1 comparing two semantic versions.
func Compare(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// Bump applies kind to current following npm's increment rules: a
// pre-release is first promoted to its release version when that is the
// requested level.
func Bump(current string, kind Kind) (string, error) {
	if !IsSemver(current) {
		return "", errors.NewValidationError("current version is not a semantic version").
			WithField("version").
			WithValue(current)
	}

	canonical := semver.Canonical("v" + current)
	pre := semver.Prerelease(canonical)
	core := strings.TrimSuffix(strings.TrimPrefix(canonical, "v"), pre)

	parts := strings.SplitN(core, ".", 3)
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", errors.NewValidationError("current version is not a semantic version").
				WithField("version").
				WithValue(current).
				WithCause(err)
		}
		nums[i] = n
	}
	major, minor, patch := nums[0], nums[1], nums[2]
	isPre := pre != ""

	switch kind {
	case KindPatch:
		if !isPre {
			patch++
		}
	case KindMinor:
		if !isPre || patch != 0 {
			minor++
		}
		patch = 0
	case KindMajor:
		if !isPre || minor != 0 || patch != 0 {
			major++
		}
		minor, patch = 0, 0
	default:
		return "", errors.NewValidationError("unsupported bump kind").WithField("version").WithValue(kind)
	}

	return fmt.Sprintf("%d.%d.%d", major, minor, patch), nil
}

// Target resolves the version a BumpSpec produces from current.
func Target(current string, b BumpSpec) (string, error) {
	if b.Kind == KindExplicit {
		return b.Explicit, nil
	}
	return Bump(current, b.Kind)
}
