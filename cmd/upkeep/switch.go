// SPDX-License-Identifier: MIT
package upkeep

import (
	"fmt"

	"github.com/skaphos/upkeep/internal/cliio"
	"github.com/skaphos/upkeep/internal/release"
	"github.com/spf13/cobra"
)

var switchCmd = &cobra.Command{
	Use:   "switch [tag]",
	Short: "Check out a release tag as a detached HEAD",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting switch")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		u, err := buildUpdater(cmd, cfg)
		if err != nil {
			return err
		}
		latest, _ := cmd.Flags().GetBool("latest")
		if latest == (len(args) == 1) {
			return fmt.Errorf("provide exactly one of a tag argument or --latest")
		}

		target := "the latest release"
		if len(args) == 1 {
			target = args[0]
		}
		if !assumeYes(cmd) {
			confirmed, err := cliio.PromptYesNo(cmd.ErrOrStderr(), cmd.InOrStdin(),
				fmt.Sprintf("Detach HEAD at %s? [y/N]: ", target))
			if err != nil {
				return err
			}
			if !confirmed {
				infof(cmd, "switch cancelled")
				return nil
			}
		}

		var res *release.SwitchResult
		if latest {
			res, err = u.SwitchLatest(cmd.Context())
		} else {
			res, err = u.SwitchVersion(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		infof(cmd, "switched to %s", res.Tag)
		for _, warning := range res.Warnings {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", warning)
		}
		if len(res.Warnings) > 0 {
			raiseExitCode(1)
		}
		return nil
	},
}

func init() {
	addYesFlag(switchCmd)
	switchCmd.Flags().Bool("latest", false, "switch to the newest release tag")
	rootCmd.AddCommand(switchCmd)
}
