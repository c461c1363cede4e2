// SPDX-License-Identifier: MIT
package upkeep

import (
	"encoding/json"
	"fmt"

	"github.com/skaphos/upkeep/internal/gitx"
	"github.com/skaphos/upkeep/internal/model"
	"github.com/skaphos/upkeep/internal/release"
	"github.com/skaphos/upkeep/internal/tableutil"
	"github.com/skaphos/upkeep/internal/termstyle"
	"github.com/spf13/cobra"
)

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List release tags newest-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting releases")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		u, err := buildUpdater(cmd, cfg)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = cfg.Defaults.MaxReleases
		}
		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")

		tags, err := u.Releases(cmd.Context(), limit)
		if err != nil {
			return err
		}
		gitRunner := u.Runner
		current := gitx.LatestReleaseForRef(cmd.Context(), gitRunner, cfg.RepoPath, "HEAD", cfg.TagPattern)

		switch format {
		case "json":
			setColorOutputMode(cmd, format)
			data, err := json.MarshalIndent(tags, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		case "table":
			setColorOutputMode(cmd, format)
			return writeReleaseTable(cmd, tags, current, noHeaders)
		default:
			return fmt.Errorf("unsupported format %q", format)
		}
	},
}

func init() {
	addFormatFlag(releasesCmd, "output format: table or json")
	addNoHeadersFlag(releasesCmd)
	releasesCmd.Flags().Int("limit", 0, "maximum number of releases to list (0 uses the configured default)")
	rootCmd.AddCommand(releasesCmd)
}

func writeReleaseTable(cmd *cobra.Command, tags []model.ReleaseTag, current string, noHeaders bool) error {
	w := tableutil.New(cmd.OutOrStdout(), true)
	if err := tableutil.PrintHeaders(w, noHeaders, "TAG", "COMMITTED", "SUBJECT", "TITLE"); err != nil {
		return err
	}
	for _, tag := range tags {
		name := tag.Name
		if current != "" && release.CompareTagNames(tag.Name, current) == 0 {
			name = termstyle.Colorize(colorOutputEnabled, name+" *", termstyle.Healthy)
		}
		subject := "-"
		if tag.Commit != nil && tag.Commit.Message != "" {
			subject = tag.Commit.Message
		}
		title := "-"
		if tag.Meta != nil {
			title = tag.Meta.Title
			if tag.Meta.Prerelease {
				title += " (prerelease)"
			}
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, displayTime(tag.CommitTime), subject, title); err != nil {
			return err
		}
	}
	return w.Flush()
}
