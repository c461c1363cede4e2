// Package updater orchestrates the core operations: refresh, update,
// plugin install, and version switch. It coordinates between gitx,
// lockfile, release, github, and statuscache, merging their results into
// one snapshot.
package updater

import (
	"context"
	"errors"
	"time"

	"github.com/skaphos/upkeep/internal/config"
	"github.com/skaphos/upkeep/internal/github"
	"github.com/skaphos/upkeep/internal/gitx"
	"github.com/skaphos/upkeep/internal/lockfile"
	"github.com/skaphos/upkeep/internal/model"
	"github.com/skaphos/upkeep/internal/release"
	"github.com/skaphos/upkeep/internal/session"
	"github.com/skaphos/upkeep/internal/statuscache"
	"github.com/skaphos/upkeep/internal/update"
)

var (
	// ErrRefreshInProgress means another refresh holds the guard.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrUpdateInProgress means another update holds the guard.
	ErrUpdateInProgress = errors.New("update already in progress")
	// ErrInstallInProgress means a plugin install holds the guard.
	ErrInstallInProgress = errors.New("plugin install already in progress")
)

// WarnFunc receives non-fatal degradation notices (lockfile parse
// failures, per-plugin errors). Nil discards them.
type WarnFunc func(format string, args ...any)

// Updater owns one tracked repository's operations.
type Updater struct {
	Cfg    *config.Config
	Runner gitx.Runner
	// Manager answers plugin queries; NoopManager when unconfigured.
	Manager lockfile.Manager
	// Tools restores tool lockfiles after switches; NoopToolRestorer
	// when unconfigured.
	Tools release.ToolRestorer
	// GitHub fetches release metadata. Nil disables enrichment.
	GitHub github.Client
	Cache  *statuscache.Cache
	State  *session.State
	Warn   WarnFunc

	// now is overridable in tests.
	now func() time.Time
}

// New wires an Updater with null implementations for absent capabilities.
func New(cfg *config.Config, runner gitx.Runner, state *session.State) *Updater {
	return &Updater{
		Cfg:     cfg,
		Runner:  runner,
		Manager: lockfile.NoopManager{},
		Tools:   release.NoopToolRestorer{},
		Cache:   &statuscache.Cache{},
		State:   state,
	}
}

func (u *Updater) warnf(format string, args ...any) {
	if u.Warn != nil {
		u.Warn(format, args...)
	}
}

func (u *Updater) timeNow() time.Time {
	if u.now != nil {
		return u.now()
	}
	return time.Now()
}

func (u *Updater) resolver() *release.Resolver {
	return &release.Resolver{
		Runner:        u.Runner,
		RepoPath:      u.Cfg.RepoPath,
		TagPattern:    u.Cfg.TagPattern,
		LockfileGlobs: u.Cfg.LockfileGlobs,
		Manager:       u.Manager,
		Tools:         u.Tools,
		State:         u.State,
	}
}

// RefreshOptions configure a refresh pass.
type RefreshOptions struct {
	// UseCache serves a fresh-enough cached snapshot instead of querying.
	UseCache bool
}

// Refresh assembles a full snapshot and persists the status cache.
// A concurrent refresh reports ErrRefreshInProgress and does nothing.
func (u *Updater) Refresh(ctx context.Context, opts RefreshOptions) (*model.Snapshot, error) {
	// An apply mutates the tree while it runs; a snapshot taken mid-apply
	// would mix pre- and post-update state.
	if u.State.InProgress(session.OpUpdate) {
		return nil, ErrUpdateInProgress
	}
	if !u.State.TryBegin(session.OpRefresh) {
		return nil, ErrRefreshInProgress
	}
	defer u.State.End(session.OpRefresh)

	if opts.UseCache {
		if snap := u.cachedSnapshot(); snap != nil {
			return snap, nil
		}
	}
	return u.snapshot(ctx)
}

// cachedSnapshot rebuilds a partial snapshot from the status cache when
// the entry is fresh. It seeds output before a full check completes.
func (u *Updater) cachedSnapshot() *model.Snapshot {
	entry, err := u.Cache.Load(u.Cfg.RepoPath)
	if err != nil || entry == nil {
		return nil
	}
	ttl := time.Duration(u.Cfg.Defaults.CacheTTLMinutes) * time.Minute
	if !entry.Fresh(ttl, u.timeNow()) {
		return nil
	}
	return &model.Snapshot{
		GeneratedAt: time.Unix(entry.LastCheckTime, 0),
		Repo: model.RepoStatus{
			Branch:        entry.Branch,
			CurrentCommit: entry.LastCommitHash,
			AheadCount:    entry.AheadCount,
			BehindCount:   entry.BehindCount,
			IsMainBranch:  entry.Branch == u.Cfg.MainBranch,
		},
		FromCache:         true,
		CachedPluginDrift: entry.HasPluginUpdates,
	}
}

// snapshot runs the full query pipeline. Read-only sub-query failures
// degrade to safe defaults so one failed query never blocks the rest.
func (u *Updater) snapshot(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{GeneratedAt: u.timeNow()}
	dir := u.Cfg.RepoPath

	commit, err := gitx.CurrentCommit(ctx, u.Runner, dir)
	if err != nil {
		// No commit means no repository worth querying further.
		snap.Repo.Error = true
		return snap, err
	}
	branch := gitx.CurrentBranch(ctx, u.Runner, dir)
	ahead, behind := gitx.AheadBehind(ctx, u.Runner, dir, branch, u.Cfg.Upstream())
	dirty, err := gitx.HasUncommittedChanges(ctx, u.Runner, dir, u.Cfg.LockfileGlobs)
	if err != nil {
		u.warnf("working tree check (%s): %v", gitx.ClassifyError(err), err)
	}
	snap.Repo = model.RepoStatus{
		Branch:          branch,
		CurrentCommit:   commit,
		AheadCount:      ahead,
		BehindCount:     behind,
		IsMainBranch:    branch == u.Cfg.MainBranch,
		HasLocalChanges: dirty,
	}

	snap.Commits, snap.CommitsOrigin = gitx.CommitLog(ctx, u.Runner, dir, gitx.LogQuery{
		Branch:     branch,
		MainBranch: u.Cfg.MainBranch,
		Upstream:   u.Cfg.Upstream(),
		Ahead:      ahead,
		Behind:     behind,
		Limit:      u.Cfg.Defaults.LogLimit,
	})
	if behind > 0 {
		snap.Diff = gitx.DiffStats(ctx, u.Runner, dir, branch, u.Cfg.Upstream())
	}
	snap.Release = u.resolver().Position(ctx)
	snap.Plugins = u.reconcilePlugins(ctx)
	u.warmReleaseMetadata(ctx)

	u.State.SetNeedsUpdate(snap.NeedsUpdate())
	if err := u.saveCache(snap); err != nil {
		u.warnf("status cache write: %v", err)
	}
	return snap, nil
}

func (u *Updater) reconcilePlugins(ctx context.Context) model.PluginDrift {
	lf, err := lockfile.Load(u.Cfg.ResolvedLockfilePath())
	if err != nil {
		// Malformed lockfile data means "no plugin data", never a crash.
		u.warnf("lockfile parse: %v", err)
		return model.PluginDrift{}
	}
	drift, warnings := lockfile.Reconcile(ctx, lf, u.Manager, lockfile.ReconcileOptions{
		Concurrency: u.Cfg.Defaults.Concurrency,
	})
	for _, w := range warnings {
		u.warnf("plugin reconcile: %v", w)
	}
	return drift
}

// warmReleaseMetadata opportunistically refreshes the session's release
// metadata cache. Enrichment is cosmetic; all failures are swallowed.
func (u *Updater) warmReleaseMetadata(ctx context.Context) {
	if u.GitHub == nil || u.Cfg.GitHub.Owner == "" || u.Cfg.GitHub.Repo == "" {
		return
	}
	ttl := time.Duration(u.Cfg.Defaults.CacheTTLMinutes) * time.Minute
	if u.State.CachedReleases(ttl, u.timeNow()) != nil {
		return
	}
	metas, err := u.GitHub.ListReleases(ctx, u.Cfg.GitHub.Owner, u.Cfg.GitHub.Repo)
	if err != nil {
		return
	}
	u.State.CacheReleases(metas, u.timeNow())
}

func (u *Updater) saveCache(snap *model.Snapshot) error {
	return u.Cache.Save(&statuscache.Entry{
		RepoPath:         u.Cfg.RepoPath,
		LastCheckTime:    snap.GeneratedAt.Unix(),
		LastCommitHash:   snap.Repo.CurrentCommit,
		Branch:           snap.Repo.Branch,
		BehindCount:      snap.Repo.BehindCount,
		AheadCount:       snap.Repo.AheadCount,
		NeedsUpdate:      !snap.Repo.Error && snap.Repo.BehindCount > 0,
		HasPluginUpdates: snap.Plugins.HasUpdates(),
	})
}

// Update runs the apply state machine and then refreshes silently.
// A concurrent update reports ErrUpdateInProgress.
func (u *Updater) Update(ctx context.Context) (*update.Result, error) {
	if !u.State.TryBegin(session.OpUpdate) {
		return nil, ErrUpdateInProgress
	}
	defer u.State.End(session.OpUpdate)

	machine := update.NewMachine(u.Runner, update.Options{
		RepoPath:      u.Cfg.RepoPath,
		MainBranch:    u.Cfg.MainBranch,
		RemoteName:    u.Cfg.RemoteName,
		LockfileGlobs: u.Cfg.LockfileGlobs,
		PullRebase:    u.Cfg.Defaults.Pull.Rebase,
		PullAutostash: u.Cfg.Defaults.Pull.Autostash,
	})
	res, err := machine.Apply(ctx)
	if err != nil {
		return res, err
	}
	u.State.MarkRecentlyUpdated()
	if _, refreshErr := u.snapshot(ctx); refreshErr != nil {
		u.warnf("post-update refresh: %v", refreshErr)
	}
	return res, nil
}

// InstallPlugins asks the plugin manager to restore from the lockfile,
// then refreshes silently.
func (u *Updater) InstallPlugins(ctx context.Context) error {
	if !u.State.TryBegin(session.OpInstallingPlugins) {
		return ErrInstallInProgress
	}
	defer u.State.End(session.OpInstallingPlugins)

	if !u.Manager.Available(ctx) {
		return errors.New("no plugin manager available")
	}
	if err := u.Manager.Restore(ctx); err != nil {
		return err
	}
	if _, err := u.snapshot(ctx); err != nil {
		u.warnf("post-install refresh: %v", err)
	}
	return nil
}

// SwitchVersion checks out the given release tag, then refreshes silently.
func (u *Updater) SwitchVersion(ctx context.Context, tag string) (*release.SwitchResult, error) {
	res, err := u.resolver().SwitchToVersion(ctx, tag)
	if err != nil {
		return nil, err
	}
	if _, refreshErr := u.snapshot(ctx); refreshErr != nil {
		u.warnf("post-switch refresh: %v", refreshErr)
	}
	return res, nil
}

// SwitchLatest checks out the newest release tag, then refreshes silently.
func (u *Updater) SwitchLatest(ctx context.Context) (*release.SwitchResult, error) {
	res, err := u.resolver().SwitchToLatest(ctx)
	if err != nil {
		return nil, err
	}
	if _, refreshErr := u.snapshot(ctx); refreshErr != nil {
		u.warnf("post-switch refresh: %v", refreshErr)
	}
	return res, nil
}

// Releases lists release tags newest-first, enriched with cached GitHub
// metadata when available.
func (u *Updater) Releases(ctx context.Context, limit int) ([]model.ReleaseTag, error) {
	tags, err := u.resolver().Tags(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	for i := range tags {
		// Commit info is advisory; an unresolvable tag keeps a nil Commit.
		if info, err := gitx.TagCommitInfo(ctx, u.Runner, u.Cfg.RepoPath, tags[i].Name); err == nil {
			tags[i].Commit = info
		}
	}
	u.warmReleaseMetadata(ctx)
	ttl := time.Duration(u.Cfg.Defaults.CacheTTLMinutes) * time.Minute
	metas := u.State.CachedReleases(ttl, u.timeNow())
	if len(metas) > 0 {
		byTag := make(map[string]model.ReleaseMeta, len(metas))
		for _, meta := range metas {
			byTag[meta.TagName] = meta
		}
		for i := range tags {
			if meta, ok := byTag[tags[i].Name]; ok {
				metaCopy := meta
				tags[i].Meta = &metaCopy
			}
		}
	}
	return tags, nil
}
