// SPDX-License-Identifier: MIT
package upkeep

import (
	"encoding/json"
	"fmt"

	"github.com/skaphos/upkeep/internal/cliio"
	"github.com/skaphos/upkeep/internal/updater"
	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Report plugin lockfile drift, optionally restoring from the lockfile",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting plugins")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		u, err := buildUpdater(cmd, cfg)
		if err != nil {
			return err
		}
		install, _ := cmd.Flags().GetBool("install")
		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")

		snap, err := u.Refresh(cmd.Context(), updater.RefreshOptions{})
		if err != nil {
			return err
		}

		switch format {
		case "json":
			setColorOutputMode(cmd, format)
			data, err := json.MarshalIndent(snap.Plugins, "", "  ")
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
				return err
			}
		case "table":
			setColorOutputMode(cmd, format)
			if !snap.Plugins.HasUpdates() {
				infof(cmd, "plugins match the lockfile")
			} else if err := writePluginTable(cmd, snap.Plugins, noHeaders); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported format %q", format)
		}

		if !install {
			if snap.Plugins.HasUpdates() {
				raiseExitCode(1)
			}
			return nil
		}
		if !snap.Plugins.HasUpdates() {
			return nil
		}
		if !assumeYes(cmd) {
			confirmed, err := cliio.PromptYesNo(cmd.ErrOrStderr(), cmd.InOrStdin(),
				fmt.Sprintf("Restore %d drifted plugins from the lockfile? [y/N]: ", len(snap.Plugins.Updates)))
			if err != nil {
				return err
			}
			if !confirmed {
				infof(cmd, "plugin restore cancelled")
				return nil
			}
		}
		if err := u.InstallPlugins(cmd.Context()); err != nil {
			return err
		}
		infof(cmd, "plugins restored from lockfile")
		return nil
	},
}

func init() {
	addFormatFlag(pluginsCmd, "output format: table or json")
	addNoHeadersFlag(pluginsCmd)
	addYesFlag(pluginsCmd)
	pluginsCmd.Flags().Bool("install", false, "restore drifted plugins from the lockfile")
	rootCmd.AddCommand(pluginsCmd)
}
