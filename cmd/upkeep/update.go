// SPDX-License-Identifier: MIT
package upkeep

import (
	"errors"
	"fmt"

	"github.com/skaphos/upkeep/internal/gitx"
	"github.com/skaphos/upkeep/internal/update"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch and apply upstream commits, rolling back on conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting update")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		u, err := buildUpdater(cmd, cfg)
		if err != nil {
			return err
		}

		res, err := u.Update(cmd.Context())
		if err == nil {
			infof(cmd, "updated %s (rollback point was %s)", res.Branch, shortCommit(res.RollbackCommit))
			if res.Output != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			}
			if u.State.RecentlyUpdated() {
				infof(cmd, "restart running sessions to pick up the update")
			}
			return nil
		}

		var rbFailed *update.RollbackFailedError
		if errors.As(err, &rbFailed) {
			// Repository may be mid-merge with no automated recovery left.
			return rbFailed
		}
		var conflict *update.ConflictError
		if errors.As(err, &conflict) && res != nil && res.RolledBack {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "update failed (%s); rolled back to %s\n",
				conflict.Marker, shortCommit(res.RollbackCommit))
			raiseExitCode(2)
			return nil
		}
		if res != nil && res.RolledBack {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "update failed (%s): %v; rolled back to %s\n",
				gitx.ClassifyError(err), err, shortCommit(res.RollbackCommit))
			raiseExitCode(2)
			return nil
		}
		return fmt.Errorf("update failed (%s): %w", gitx.ClassifyError(err), err)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
