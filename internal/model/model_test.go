package model_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/upkeep/internal/model"
)

var _ = Describe("RepoStatus", func() {
	It("is up to date with nothing behind", func() {
		status := model.RepoStatus{Branch: "main", BehindCount: 0}
		Expect(status.UpToDate()).To(BeTrue())
	})

	It("is not up to date when behind", func() {
		status := model.RepoStatus{Branch: "main", BehindCount: 2}
		Expect(status.UpToDate()).To(BeFalse())
	})

	It("is never up to date in the error state", func() {
		status := model.RepoStatus{Error: true}
		Expect(status.UpToDate()).To(BeFalse())
	})
})

var _ = Describe("PluginDrift", func() {
	It("reports updates when any entry drifted", func() {
		drift := model.PluginDrift{Updates: []model.PluginUpdate{
			{Name: "telescope.nvim", Direction: model.DriftBehind},
		}}
		Expect(drift.HasUpdates()).To(BeTrue())
	})

	It("reports no updates when empty", func() {
		Expect(model.PluginDrift{}.HasUpdates()).To(BeFalse())
	})
})

var _ = Describe("Snapshot", func() {
	It("needs an update when behind upstream", func() {
		snap := model.Snapshot{Repo: model.RepoStatus{BehindCount: 1}}
		Expect(snap.NeedsUpdate()).To(BeTrue())
	})

	It("needs an update when plugins drifted", func() {
		snap := model.Snapshot{Plugins: model.PluginDrift{
			Updates: []model.PluginUpdate{{Name: "plenary.nvim"}},
		}}
		Expect(snap.NeedsUpdate()).To(BeTrue())
	})

	It("does not trust counts from an errored status", func() {
		snap := model.Snapshot{Repo: model.RepoStatus{Error: true, BehindCount: 5}}
		Expect(snap.NeedsUpdate()).To(BeFalse())
	})

	It("needs an update when a cached entry recorded plugin drift", func() {
		snap := model.Snapshot{FromCache: true, CachedPluginDrift: true}
		Expect(snap.NeedsUpdate()).To(BeTrue())
	})

	It("needs nothing when clean and current", func() {
		snap := model.Snapshot{Repo: model.RepoStatus{Branch: "main"}}
		Expect(snap.NeedsUpdate()).To(BeFalse())
	})
})
