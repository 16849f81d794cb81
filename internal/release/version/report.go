package version

import (
	"regexp"
	"time"
)

// reportLine matches "- <package-id>: <old> => <new>" with an optional
// leading bullet. Package ids may be scoped and versions may carry
// pre-release or build suffixes.
var reportLine = regexp.MustCompile(
	`(?m)^\s*(?:-\s+)?(\S+):\s+(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]*)?)\s+=>\s+(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]*)?)\s*$`)

// Change is one version change from a dry-run report.
type Change struct {
	Package string
	From    string
	To      string
}

// ParseReport extracts every version change line from report.
func ParseReport(report string) []Change {
	var changes []Change
	for _, m := range reportLine.FindAllStringSubmatch(report, -1) {
		changes = append(changes, Change{Package: m[1], From: m[2], To: m[3]})
	}
	return changes
}

// TimestampTag returns the synthetic multi-package tag for now, in now's
// location: multi-YYYYMMDD-HHMMSS.
func TimestampTag(now time.Time) string {
	return "multi-" + now.Format("20060102-150405")
}

// FromReport plans a release from a dry-run report. Exactly one change makes
// its new version the target; zero or several fall back to a timestamp tag.
// The publish tool is left to choose versions in both cases.
func FromReport(report string, now time.Time) Plan {
	changes := ParseReport(report)
	if len(changes) == 1 {
		return Plan{
			Bump:    Explicit(changes[0].To),
			Target:  changes[0].To,
			Changes: changes,
		}
	}

	tag := TimestampTag(now)
	return Plan{
		Bump:      Explicit(tag),
		Target:    tag,
		Changes:   changes,
		Synthetic: true,
	}
}
