package release

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/skaphos/upkeep/internal/gitx"
	"github.com/skaphos/upkeep/internal/lockfile"
	"github.com/skaphos/upkeep/internal/model"
	"github.com/skaphos/upkeep/internal/session"
)

var (
	// ErrSwitchInProgress means another version switch holds the guard.
	ErrSwitchInProgress = errors.New("version switch already in progress")
	// ErrDirtyWorkingTree means non-lockfile uncommitted changes exist.
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes; commit or stash them before switching versions")
	// ErrUnknownTag means the requested tag is not in the known tag set.
	ErrUnknownTag = errors.New("unknown release tag")
	// ErrNoReleases means the repository has no release tags at all.
	ErrNoReleases = errors.New("no release tags found")
)

// ToolRestorer is the capability interface to an external tool-lockfile
// restorer. Absence is not an error; the no-op implementation stands in.
type ToolRestorer interface {
	Available(ctx context.Context) bool
	Restore(ctx context.Context) error
}

// NoopToolRestorer is used when no tool restorer is configured.
type NoopToolRestorer struct{}

func (NoopToolRestorer) Available(context.Context) bool { return false }

func (NoopToolRestorer) Restore(context.Context) error { return nil }

// CommandRunner runs an arbitrary argv, matching the process-runner shape.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CommandRestorer runs a user-configured restore argv from Dir. It backs
// tool-lockfile restores (mise, asdf and the like) after version switches.
type CommandRestorer struct {
	Dir    string
	Args   []string
	Runner CommandRunner
}

func (c *CommandRestorer) Available(context.Context) bool {
	return len(c.Args) > 0 && c.Runner != nil
}

func (c *CommandRestorer) Restore(ctx context.Context) error {
	if !c.Available(ctx) {
		return nil
	}
	_, err := c.Runner.Run(ctx, c.Dir, c.Args...)
	return err
}

// Resolver drives tag listing and checkout-and-restore version switches
// for one repository.
type Resolver struct {
	Runner        gitx.Runner
	RepoPath      string
	TagPattern    string
	LockfileGlobs []string
	// Manager restores plugins after a switch, best-effort.
	Manager lockfile.Manager
	// Tools restores tool lockfiles after a switch, best-effort.
	Tools ToolRestorer
	// State serializes switches.
	State *session.State
}

// Tags lists release tags newest-first by pointed-to commit time. Tags
// on the same commit time (rebuilt or batch-pushed tags) fall back to
// version order.
func (r *Resolver) Tags(ctx context.Context) ([]model.ReleaseTag, error) {
	tags, err := gitx.VersionTags(ctx, r.Runner, r.RepoPath, r.TagPattern)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].CommitTime != tags[j].CommitTime {
			return tags[i].CommitTime > tags[j].CommitTime
		}
		return CompareTagNames(tags[i].Name, tags[j].Name) > 0
	})
	return tags, nil
}

// Position locates HEAD relative to the tag history. Sub-query failures
// degrade to empty fields; position is advisory.
func (r *Resolver) Position(ctx context.Context) model.ReleasePosition {
	pos := model.ReleasePosition{}
	pos.CurrentRelease = gitx.LatestReleaseForRef(ctx, r.Runner, r.RepoPath, "HEAD", r.TagPattern)
	if pos.CurrentRelease != "" {
		pos.CommitsSince = gitx.CommitsSinceTag(ctx, r.Runner, r.RepoPath, pos.CurrentRelease)
	}
	if tags, err := r.Tags(ctx); err == nil && len(tags) > 0 {
		pos.LatestRelease = tags[0].Name
	}
	return pos
}

// ReleasesSince returns the tags newer than current, newest-first and
// exclusive of current itself. An unknown current yields the full list.
func ReleasesSince(tags []model.ReleaseTag, current string) []model.ReleaseTag {
	for i, tag := range tags {
		if tag.Name == current {
			return tags[:i]
		}
	}
	return tags
}

// ReleasesBefore returns up to max tags older than current, newest-first
// and exclusive of current itself.
func ReleasesBefore(tags []model.ReleaseTag, current string, max int) []model.ReleaseTag {
	if max <= 0 {
		return nil
	}
	for i, tag := range tags {
		if tag.Name == current {
			older := tags[i+1:]
			if len(older) > max {
				older = older[:max]
			}
			return older
		}
	}
	return nil
}

// SwitchResult reports a completed version switch.
type SwitchResult struct {
	// Tag is the tag that was checked out.
	Tag string
	// Warnings holds post-checkout restore failures. The checkout itself
	// succeeded; these never roll it back.
	Warnings []error
}

// SwitchToVersion checks out the given tag as a detached HEAD and then
// runs the external restore commands best-effort. It refuses when a
// switch is already in flight, when non-lockfile changes exist, or when
// the tag is not in the known tag set.
func (r *Resolver) SwitchToVersion(ctx context.Context, tag string) (*SwitchResult, error) {
	if !r.State.TryBegin(session.OpSwitchingVersion) {
		return nil, ErrSwitchInProgress
	}
	defer r.State.End(session.OpSwitchingVersion)
	return r.switchLocked(ctx, tag)
}

// SwitchToLatest switches to the newest tag by commit time.
func (r *Resolver) SwitchToLatest(ctx context.Context) (*SwitchResult, error) {
	if !r.State.TryBegin(session.OpSwitchingVersion) {
		return nil, ErrSwitchInProgress
	}
	defer r.State.End(session.OpSwitchingVersion)
	tags, err := r.Tags(ctx)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, ErrNoReleases
	}
	return r.switchLocked(ctx, tags[0].Name)
}

func (r *Resolver) switchLocked(ctx context.Context, tag string) (*SwitchResult, error) {
	// Lockfile-only dirt is discarded here; anything else refuses the
	// switch before any mutation.
	dirty, err := gitx.HasUncommittedChanges(ctx, r.Runner, r.RepoPath, r.LockfileGlobs)
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, ErrDirtyWorkingTree
	}
	tags, err := r.Tags(ctx)
	if err != nil {
		return nil, err
	}
	if !containsTag(tags, tag) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	if err := gitx.CheckoutDetached(ctx, r.Runner, r.RepoPath, tag); err != nil {
		return nil, err
	}

	// The checkout is the primary contract. Restore failures are
	// warnings from here on.
	result := &SwitchResult{Tag: tag}
	if r.Manager != nil && r.Manager.Available(ctx) {
		if err := r.Manager.Restore(ctx); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("plugin restore: %w", err))
		}
	}
	if r.Tools != nil && r.Tools.Available(ctx) {
		if err := r.Tools.Restore(ctx); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("tool lockfile restore: %w", err))
		}
	}
	return result, nil
}

func containsTag(tags []model.ReleaseTag, name string) bool {
	for _, tag := range tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}
