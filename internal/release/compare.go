// Package release resolves tag-based releases: ordering, the position of
// HEAD in the tag history, and checkout-and-restore version switches.
package release

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed release tag name.
type Version struct {
	// Core is the numeric major.minor.patch portion.
	Core *semver.Version
	// Prerelease is the raw suffix after "-", empty for final releases.
	Prerelease string
}

// ParseVersion parses "v1.2.3" or "1.2.3-pre1" style tag names.
// Returns ok=false for names that do not look like versions.
func ParseVersion(tag string) (Version, bool) {
	name := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	if name == "" {
		return Version{}, false
	}
	core := name
	pre := ""
	if idx := strings.IndexByte(name, '-'); idx >= 0 {
		core = name[:idx]
		pre = name[idx+1:]
	}
	v, err := semver.StrictNewVersion(core)
	if err != nil {
		return Version{}, false
	}
	return Version{Core: v, Prerelease: pre}, true
}

// Compare orders two versions. The release core compares numerically,
// component by component. For equal cores, no-prerelease sorts above any
// prerelease, and differing prerelease strings compare lexicographically.
// The lexicographic tie-break is a deliberate heuristic, not semver
// precedence ("pre10" < "pre9"); tests pin it so it is not changed
// without deciding the intended semantics.
func Compare(a, b Version) int {
	if c := a.Core.Compare(b.Core); c != 0 {
		return c
	}
	switch {
	case a.Prerelease == b.Prerelease:
		return 0
	case a.Prerelease == "":
		return 1
	case b.Prerelease == "":
		return -1
	case a.Prerelease < b.Prerelease:
		return -1
	default:
		return 1
	}
}

// CompareTagNames orders two tag names, pushing unparseable names below
// parseable ones.
func CompareTagNames(a, b string) int {
	va, okA := ParseVersion(a)
	vb, okB := ParseVersion(b)
	switch {
	case okA && okB:
		return Compare(va, vb)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
