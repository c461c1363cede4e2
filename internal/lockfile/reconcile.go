package lockfile

import (
	"context"
	"sort"

	"github.com/skaphos/upkeep/internal/model"
)

// ReconcileOptions configures a reconciliation pass.
type ReconcileOptions struct {
	// Concurrency bounds the timestamp fan-out. <=0 means 8.
	Concurrency int
}

// Reconcile compares every lockfile pin against the installed commit and
// classifies each drifted entry. Timestamp lookups are independent
// read-only queries against unrelated repositories, so they run
// concurrently (fan-out/fan-in). Per-plugin failures degrade to the
// conservative "behind" default and are returned as warnings, never as a
// pass failure.
func Reconcile(ctx context.Context, lf Lockfile, mgr Manager, opts ReconcileOptions) (model.PluginDrift, []error) {
	var drift model.PluginDrift
	if len(lf) == 0 || mgr == nil || !mgr.Available(ctx) {
		return drift, nil
	}

	type drifted struct {
		update model.PluginUpdate
	}
	var (
		pending  []model.PluginUpdate
		warnings []error
	)
	for _, name := range lf.Names() {
		entry := lf[name]
		installed, err := mgr.InstalledCommit(ctx, name)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		// Not installed at all: nothing to reconcile.
		if installed == "" || installed == entry.Commit {
			continue
		}
		pending = append(pending, model.PluginUpdate{
			Name:            name,
			InstalledCommit: installed,
			LockfileCommit:  entry.Commit,
			Branch:          entry.Branch,
		})
	}
	if len(pending) == 0 {
		return drift, warnings
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	// The buffer must hold every result: workers hold their semaphore slot
	// until the send completes, so a smaller buffer can wedge the spawn
	// loop once it fills while goroutines are still in flight.
	sem := make(chan struct{}, concurrency)
	out := make(chan drifted, len(pending))
	for _, upd := range pending {
		sem <- struct{}{}
		go func(upd model.PluginUpdate) {
			defer func() { <-sem }()
			upd.Direction = classify(ctx, mgr, upd)
			out <- drifted{update: upd}
		}(upd)
	}
	updates := make([]model.PluginUpdate, 0, len(pending))
	for range pending {
		updates = append(updates, (<-out).update)
	}
	// Fan-in order is completion order; restore lockfile order.
	sort.Slice(updates, func(i, j int) bool { return updates[i].Name < updates[j].Name })

	drift.Updates = updates
	for _, upd := range updates {
		if upd.Direction == model.DriftAhead {
			drift.Ahead = append(drift.Ahead, upd)
		} else {
			drift.Behind = append(drift.Behind, upd)
		}
	}
	return drift, warnings
}

// classify infers the drift direction from commit timestamps inside the
// plugin's own repository. installed newer than pinned means "ahead" (a
// downgrade candidate); everything else, including unresolvable
// timestamps, is the conservative "behind".
func classify(ctx context.Context, mgr Manager, upd model.PluginUpdate) model.DriftDirection {
	installedTS, err := mgr.CommitTimestamp(ctx, upd.Name, upd.InstalledCommit)
	if err != nil {
		return model.DriftBehind
	}
	lockfileTS, err := mgr.CommitTimestamp(ctx, upd.Name, upd.LockfileCommit)
	if err != nil {
		return model.DriftBehind
	}
	if installedTS > lockfileTS {
		return model.DriftAhead
	}
	return model.DriftBehind
}
