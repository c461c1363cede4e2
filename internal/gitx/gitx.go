// Package gitx provides the read-only git queries and mutating wrappers
// upkeep is built on. It shells out to the installed git binary.
package gitx

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/skaphos/upkeep/internal/model"
)

// Runner executes git commands in a given repo directory.
// This interface allows mocking in tests.
type Runner interface {
	// Run executes a git command in the given directory and returns
	// trimmed stdout.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// logFormat is the delimiter-joined log format every commit query uses:
// hash, subject, author, relative date, tab-separated.
const logFormat = "--format=%h%x09%s%x09%an%x09%ar"

// CurrentCommit returns the full HEAD commit hash.
func CurrentCommit(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the current branch name, or "unknown".
// It never fails the caller; "unknown" is a valid sentinel.
func CurrentBranch(ctx context.Context, r Runner, dir string) string {
	out, err := r.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || strings.TrimSpace(out) == "" {
		return "unknown"
	}
	return strings.TrimSpace(out)
}

// AheadBehind returns (ahead, behind) counts for branch relative to
// upstream. Missing or unparseable output yields (0, 0), not an error;
// the counts are advisory.
func AheadBehind(ctx context.Context, r Runner, dir, branch, upstream string) (int, int) {
	out, err := r.Run(ctx, dir, "rev-list", "--left-right", "--count", branch+"..."+upstream)
	if err != nil {
		return 0, 0
	}
	return ParseRevListCount(out)
}

// LogQuery selects the commit window for a snapshot.
type LogQuery struct {
	// Branch is the current branch.
	Branch string
	// MainBranch is the configured main branch name.
	MainBranch string
	// Upstream is the upstream ref of the main branch (for example "origin/main").
	Upstream string
	// Ahead and Behind are the counts from AheadBehind.
	Ahead, Behind int
	// Limit bounds the local HEAD log case.
	Limit int
}

// CommitLog returns the commit window chosen by the direction decision
// table:
//
//	branch == main, behind > 0  -> upstream commits not yet local (remote)
//	branch == main, behind == 0 -> local HEAD log (local)
//	branch != main, ahead > 0   -> local commits not on main (local)
//	branch != main, ahead == 0  -> main commits not on branch (remote)
//
// Query failures degrade to an empty list.
func CommitLog(ctx context.Context, r Runner, dir string, q LogQuery) ([]model.Commit, model.LogOrigin) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	var args []string
	switch {
	case q.Branch == q.MainBranch && q.Behind > 0:
		return RemoteCommitsNotInLocal(ctx, r, dir, q.Branch, q.Upstream), model.LogRemote
	case q.Branch == q.MainBranch:
		args = []string{"log", logFormat, "-n", fmt.Sprintf("%d", limit), "HEAD"}
	case q.Ahead > 0:
		args = []string{"log", logFormat, q.MainBranch + ".." + q.Branch}
	default:
		return RemoteCommitsNotInLocal(ctx, r, dir, q.Branch, q.Upstream), model.LogRemote
	}
	out, err := r.Run(ctx, dir, args...)
	if err != nil {
		return nil, model.LogLocal
	}
	return ParseLogLines(out), model.LogLocal
}

// RemoteCommitsNotInLocal lists commits reachable from remoteRef but not
// from local. Query failures degrade to an empty list.
func RemoteCommitsNotInLocal(ctx context.Context, r Runner, dir, local, remoteRef string) []model.Commit {
	out, err := r.Run(ctx, dir, "log", logFormat, local+".."+remoteRef)
	if err != nil {
		return nil
	}
	return ParseLogLines(out)
}

// HasUncommittedChanges reports whether the working tree has changes that
// should block a mutating operation. Changes confined entirely to the
// lockfile allow-list are discarded (checked out clean) and treated as no
// changes; any non-lockfile change blocks.
func HasUncommittedChanges(ctx context.Context, r Runner, dir string, lockfileGlobs []string) (bool, error) {
	out, err := r.Run(ctx, dir, "status", "--porcelain=v1")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	paths := ParseStatusPaths(out)
	if len(paths) == 0 {
		return false, nil
	}
	for _, p := range paths {
		if !IsLockfilePath(p, lockfileGlobs) {
			return true, nil
		}
	}
	// Lockfile-only dirt: the external manager rewrites these files on its
	// own schedule, so discarding them is safe.
	if err := CheckoutPaths(ctx, r, dir, paths...); err != nil {
		return true, fmt.Errorf("discard lockfile changes: %w", err)
	}
	return false, nil
}

// IsLockfilePath reports whether path matches any allow-list glob.
func IsLockfilePath(path string, globs []string) bool {
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}

// VersionTags returns tags matching pattern sorted newest-first by the
// timestamp of the commit each tag points to. Tag-name lexical order is
// irrelevant; out-of-order tag creation must not corrupt ordering.
func VersionTags(ctx context.Context, r Runner, dir, pattern string) ([]model.ReleaseTag, error) {
	// %(*committerdate:unix) resolves the pointed-to commit for annotated
	// tags; lightweight tags fall back to %(committerdate:unix).
	out, err := r.Run(ctx, dir, "tag", "-l", pattern,
		"--format=%(refname:short)%09%(*committerdate:unix)%09%(committerdate:unix)")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	tags := ParseTagList(out)
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].CommitTime > tags[j].CommitTime
	})
	return tags, nil
}

// LatestReleaseForRef returns the latest tag reachable from ref, or ""
// when no tag is reachable.
func LatestReleaseForRef(ctx context.Context, r Runner, dir, ref, pattern string) string {
	args := []string{"describe", "--tags", "--abbrev=0"}
	if strings.TrimSpace(pattern) != "" {
		args = append(args, "--match", pattern)
	}
	args = append(args, ref)
	out, err := r.Run(ctx, dir, args...)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// CommitsSinceTag counts commits on HEAD past the given tag.
func CommitsSinceTag(ctx context.Context, r Runner, dir, tag string) int {
	out, err := r.Run(ctx, dir, "rev-list", "--count", tag+"..HEAD")
	if err != nil {
		return 0
	}
	n, ok := parseCount(out)
	if !ok {
		return 0
	}
	return n
}

// TagCommitInfo returns the log entry for the commit a tag points to.
func TagCommitInfo(ctx context.Context, r Runner, dir, tag string) (*model.Commit, error) {
	out, err := r.Run(ctx, dir, "log", "-n", "1", logFormat, tag)
	if err != nil {
		return nil, fmt.Errorf("tag %s: %w", tag, err)
	}
	commits := ParseLogLines(out)
	if len(commits) == 0 {
		return nil, fmt.Errorf("tag %s: no commit info", tag)
	}
	return &commits[0], nil
}

// CommitTimestamp returns the unix committer timestamp of a revision.
func CommitTimestamp(ctx context.Context, r Runner, dir, rev string) (int64, error) {
	out, err := r.Run(ctx, dir, "show", "-s", "--format=%ct", rev)
	if err != nil {
		return 0, fmt.Errorf("timestamp of %s: %w", rev, err)
	}
	return ParseUnixTimestamp(out)
}

// DiffStats summarizes the diff between two revisions. It prefers the
// shortstat format and falls back to summing numstat lines.
func DiffStats(ctx context.Context, r Runner, dir, from, to string) *model.DiffStats {
	out, err := r.Run(ctx, dir, "diff", "--shortstat", from+".."+to)
	if err == nil {
		if stats := ParseShortStat(out); stats != nil {
			return stats
		}
	}
	out, err = r.Run(ctx, dir, "diff", "--numstat", from+".."+to)
	if err != nil {
		return nil
	}
	return ParseNumstat(out)
}
