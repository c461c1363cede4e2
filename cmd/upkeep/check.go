// SPDX-License-Identifier: MIT
package upkeep

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/skaphos/upkeep/internal/model"
	"github.com/skaphos/upkeep/internal/release"
	"github.com/skaphos/upkeep/internal/tableutil"
	"github.com/skaphos/upkeep/internal/termstyle"
	"github.com/skaphos/upkeep/internal/updater"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report upstream and plugin drift for the tracked repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting check")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		u, err := buildUpdater(cmd, cfg)
		if err != nil {
			return err
		}
		cached, _ := cmd.Flags().GetBool("cached")
		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")

		snap, err := u.Refresh(cmd.Context(), updater.RefreshOptions{UseCache: cached})
		if err != nil {
			if snap != nil && snap.Repo.Error {
				raiseExitCode(2)
			}
			return err
		}

		switch format {
		case "json":
			setColorOutputMode(cmd, format)
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
				return err
			}
		case "table":
			setColorOutputMode(cmd, format)
			if err := writeCheckTable(cmd, snap, noHeaders); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported format %q", format)
		}

		if snap.NeedsUpdate() {
			raiseExitCode(1)
		}
		infof(cmd, "check completed")
		return nil
	},
}

func init() {
	addFormatFlag(checkCmd, "output format: table or json")
	addNoHeadersFlag(checkCmd)
	checkCmd.Flags().Bool("cached", false, "serve a fresh-enough cached result without querying git")
	rootCmd.AddCommand(checkCmd)
}

func writeCheckTable(cmd *cobra.Command, snap *model.Snapshot, noHeaders bool) error {
	w := tableutil.New(cmd.OutOrStdout(), true)
	if err := tableutil.PrintHeaders(w, noHeaders, "BRANCH", "COMMIT", "AHEAD", "BEHIND", "DIRTY", "STATUS"); err != nil {
		return err
	}
	dirty := "no"
	if snap.Repo.HasLocalChanges {
		dirty = termstyle.Colorize(colorOutputEnabled, "yes", termstyle.Warn)
	}
	status := termstyle.Colorize(colorOutputEnabled, "up to date", termstyle.Healthy)
	if snap.Repo.BehindCount > 0 || snap.CachedPluginDrift {
		status = termstyle.Colorize(colorOutputEnabled, "update available", termstyle.Warn)
	}
	if snap.FromCache {
		status += " (cached)"
	}
	if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
		snap.Repo.Branch, snap.Repo.CurrentCommit, snap.Repo.AheadCount,
		snap.Repo.BehindCount, dirty, status); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if snap.Release.CurrentRelease != "" || snap.Release.LatestRelease != "" {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "\nrelease: %s", displayRelease(snap.Release)); err != nil {
			return err
		}
	}
	if len(snap.Commits) > 0 {
		if err := writeCommitTable(cmd, snap.Commits, snap.CommitsOrigin, noHeaders); err != nil {
			return err
		}
	}
	if snap.Diff != nil {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "\n%d files changed, %d insertions(+), %d deletions(-)\n",
			snap.Diff.FilesChanged, snap.Diff.Insertions, snap.Diff.Deletions); err != nil {
			return err
		}
	}
	if snap.Plugins.HasUpdates() {
		if err := writePluginTable(cmd, snap.Plugins, noHeaders); err != nil {
			return err
		}
	}
	return nil
}

func displayRelease(pos model.ReleasePosition) string {
	current := pos.CurrentRelease
	if current == "" {
		current = "none"
	}
	out := current
	if pos.CommitsSince > 0 {
		out += fmt.Sprintf(" +%d commits", pos.CommitsSince)
	}
	// Version order, not name equality: a latest tag that is merely a
	// respelling of the current one ("1.2.0" vs "v1.2.0") is not news.
	if pos.LatestRelease != "" && release.CompareTagNames(pos.LatestRelease, pos.CurrentRelease) > 0 {
		out += fmt.Sprintf(" (latest: %s)", pos.LatestRelease)
	}
	return out + "\n"
}

func writeCommitTable(cmd *cobra.Command, commits []model.Commit, origin model.LogOrigin, noHeaders bool) error {
	label := "incoming"
	if origin == model.LogLocal {
		label = "local"
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "\n%s commits:\n", label); err != nil {
		return err
	}
	w := tableutil.New(cmd.OutOrStdout(), true)
	if err := tableutil.PrintHeaders(w, noHeaders, "HASH", "MESSAGE", "AUTHOR", "DATE"); err != nil {
		return err
	}
	for _, commit := range commits {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", commit.Hash, commit.Message, commit.Author, commit.Date); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writePluginTable(cmd *cobra.Command, drift model.PluginDrift, noHeaders bool) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "\nplugin drift (%d behind, %d ahead):\n",
		len(drift.Behind), len(drift.Ahead)); err != nil {
		return err
	}
	w := tableutil.New(cmd.OutOrStdout(), true)
	if err := tableutil.PrintHeaders(w, noHeaders, "NAME", "DIRECTION", "INSTALLED", "PINNED", "BRANCH"); err != nil {
		return err
	}
	for _, up := range drift.Updates {
		direction := termstyle.Colorize(colorOutputEnabled, string(up.Direction), termstyle.DriftColor(string(up.Direction)))
		installed := up.InstalledCommit
		if installed == "" {
			installed = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			up.Name, direction, shortCommit(installed), shortCommit(up.LockfileCommit), up.Branch); err != nil {
			return err
		}
	}
	return w.Flush()
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

// displayTime renders a unix timestamp for table output.
func displayTime(unix int64) string {
	if unix <= 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}
