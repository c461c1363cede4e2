// Package model defines the core data types used throughout upkeep.
package model

import "time"

// MaxCommitMessageLen bounds commit subjects carried on snapshots.
const MaxCommitMessageLen = 80

// Commit is a single parsed log entry. Immutable once parsed.
type Commit struct {
	// Hash is the abbreviated or full commit hash.
	Hash string `json:"hash" yaml:"hash"`
	// Message is the commit subject, newline-stripped and truncated.
	Message string `json:"message" yaml:"message"`
	// Author is the commit author name.
	Author string `json:"author" yaml:"author"`
	// Date is the commit date as git rendered it (relative or ISO).
	Date string `json:"date" yaml:"date"`
}

// LogOrigin reports which side of the tracking relationship a commit
// log was taken from.
type LogOrigin string

const (
	LogLocal  LogOrigin = "local"
	LogRemote LogOrigin = "remote"
)

// RepoStatus is the per-refresh snapshot of the tracked repository.
// Error == true invalidates every other field.
type RepoStatus struct {
	// Branch is the current branch name, or "unknown".
	Branch string `json:"branch" yaml:"branch"`
	// CurrentCommit is the HEAD commit hash.
	CurrentCommit string `json:"current_commit" yaml:"current_commit"`
	// AheadCount is the number of local-only commits relative to upstream.
	AheadCount int `json:"ahead_count" yaml:"ahead_count"`
	// BehindCount is the number of upstream-only commits relative to local.
	BehindCount int `json:"behind_count" yaml:"behind_count"`
	// IsMainBranch reports whether Branch equals the configured main branch.
	IsMainBranch bool `json:"is_main_branch" yaml:"is_main_branch"`
	// HasLocalChanges reports non-lockfile uncommitted changes.
	HasLocalChanges bool `json:"has_local_changes" yaml:"has_local_changes"`
	// Error reports that the status could not be determined.
	Error bool `json:"error" yaml:"error"`
}

// UpToDate reports whether the repository needs no update.
func (s RepoStatus) UpToDate() bool {
	return !s.Error && s.BehindCount == 0
}

// DriftDirection classifies a plugin commit mismatch.
type DriftDirection string

const (
	// DriftBehind means the installed commit is older than the pinned one.
	DriftBehind DriftDirection = "behind"
	// DriftAhead means the installed commit is newer than the pinned one.
	DriftAhead DriftDirection = "ahead"
)

// PluginUpdate records one drifted lockfile entry. Created fresh every
// reconciliation pass and never mutated.
type PluginUpdate struct {
	// Name is the plugin's unique key in the lockfile.
	Name string `json:"name" yaml:"name"`
	// InstalledCommit is the commit the plugin manager has checked out.
	InstalledCommit string `json:"installed_commit" yaml:"installed_commit"`
	// LockfileCommit is the commit pinned in the lockfile.
	LockfileCommit string `json:"lockfile_commit" yaml:"lockfile_commit"`
	// Branch is the branch recorded for the entry in the lockfile.
	Branch string `json:"branch" yaml:"branch"`
	// Direction is the inferred drift direction, never asserted by the lockfile.
	Direction DriftDirection `json:"direction" yaml:"direction"`
}

// PluginDrift is the partitioned result of one reconciliation pass.
type PluginDrift struct {
	// Updates is the unpartitioned union, in lockfile iteration order.
	Updates []PluginUpdate `json:"updates" yaml:"updates"`
	// Behind holds entries whose installed commit is older than the pin.
	Behind []PluginUpdate `json:"behind" yaml:"behind"`
	// Ahead holds entries whose installed commit is newer than the pin.
	Ahead []PluginUpdate `json:"ahead" yaml:"ahead"`
}

// HasUpdates reports whether any entry drifted.
func (d PluginDrift) HasUpdates() bool { return len(d.Updates) > 0 }

// ReleaseMeta is optional GitHub enrichment for a release tag.
type ReleaseMeta struct {
	// TagName joins the metadata to a local tag.
	TagName string `json:"tag_name" yaml:"tag_name"`
	// Title is the release title.
	Title string `json:"title" yaml:"title"`
	// Body is the release notes body.
	Body string `json:"body" yaml:"body"`
	// Prerelease marks the release as a prerelease.
	Prerelease bool `json:"prerelease" yaml:"prerelease"`
	// HTMLURL links to the release page.
	HTMLURL string `json:"html_url" yaml:"html_url"`
	// PublishedAt is the publication timestamp.
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// ReleaseTag is a version tag plus the commit it points to.
type ReleaseTag struct {
	// Name is the tag name (for example "v1.2.3").
	Name string `json:"name" yaml:"name"`
	// CommitTime is the unix timestamp of the commit the tag points to.
	CommitTime int64 `json:"commit_time" yaml:"commit_time"`
	// Commit is the pointed-to commit's log info when resolved.
	Commit *Commit `json:"commit,omitempty" yaml:"commit,omitempty"`
	// Meta is optional GitHub metadata. Nil when unavailable.
	Meta *ReleaseMeta `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// ReleasePosition locates HEAD relative to the tag history.
type ReleasePosition struct {
	// CurrentRelease is the latest tag reachable from HEAD. Empty when none.
	CurrentRelease string `json:"current_release" yaml:"current_release"`
	// CommitsSince counts commits on HEAD past CurrentRelease.
	CommitsSince int `json:"commits_since" yaml:"commits_since"`
	// LatestRelease is the newest known tag by commit time. Empty when none.
	LatestRelease string `json:"latest_release" yaml:"latest_release"`
}

// DiffStats summarizes the diff between HEAD and upstream.
type DiffStats struct {
	// FilesChanged is the number of files touched.
	FilesChanged int `json:"files_changed" yaml:"files_changed"`
	// Insertions is the number of added lines.
	Insertions int `json:"insertions" yaml:"insertions"`
	// Deletions is the number of removed lines.
	Deletions int `json:"deletions" yaml:"deletions"`
}

// Snapshot is the fully merged result of one refresh pass.
type Snapshot struct {
	// GeneratedAt is when the snapshot was assembled.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	// Repo is the repository status portion.
	Repo RepoStatus `json:"repo" yaml:"repo"`
	// Commits is the log window chosen by the direction decision table.
	Commits []Commit `json:"commits" yaml:"commits"`
	// CommitsOrigin reports which side Commits came from.
	CommitsOrigin LogOrigin `json:"commits_origin" yaml:"commits_origin"`
	// Diff summarizes HEAD..upstream when behind. Nil otherwise.
	Diff *DiffStats `json:"diff,omitempty" yaml:"diff,omitempty"`
	// Release locates HEAD in the tag history.
	Release ReleasePosition `json:"release" yaml:"release"`
	// Plugins is the lockfile drift portion.
	Plugins PluginDrift `json:"plugins" yaml:"plugins"`
	// FromCache marks a snapshot served from the status cache.
	FromCache bool `json:"from_cache,omitempty" yaml:"from_cache,omitempty"`
	// CachedPluginDrift carries the plugin-drift flag recorded by the
	// cache entry a cached snapshot was rebuilt from. Plugins itself is
	// empty on such snapshots; this keeps the pending signal.
	CachedPluginDrift bool `json:"cached_plugin_drift,omitempty" yaml:"cached_plugin_drift,omitempty"`
}

// NeedsUpdate reports whether anything is pending.
func (s Snapshot) NeedsUpdate() bool {
	return (!s.Repo.Error && s.Repo.BehindCount > 0) || s.Plugins.HasUpdates() || s.CachedPluginDrift
}
