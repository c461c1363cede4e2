// SPDX-License-Identifier: MIT
package upkeep

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skaphos/upkeep/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [repo-path]",
	Short: "Write a starter config for a tracked repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath := "."
		if len(args) == 1 {
			repoPath = args[0]
		}
		abs, err := filepath.Abs(repoPath)
		if err != nil {
			return err
		}
		if err := config.ValidateRepoPath(abs); err != nil {
			return err
		}
		if info, err := os.Stat(filepath.Join(abs, ".git")); err != nil || !info.IsDir() {
			return fmt.Errorf("%s does not look like a git checkout", abs)
		}

		cfg := config.DefaultConfig()
		cfg.RepoPath = abs
		if branch, _ := cmd.Flags().GetString("main-branch"); branch != "" {
			cfg.MainBranch = branch
		}
		if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
			cfg.RemoteName = remote
		}
		if pattern, _ := cmd.Flags().GetString("tag-pattern"); pattern != "" {
			cfg.TagPattern = pattern
		}

		local, _ := cmd.Flags().GetBool("local")
		var cfgPath string
		if local {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfgPath = filepath.Join(cwd, config.LocalConfigFilename)
		} else {
			cfgPath, err = config.ConfigPath(flagConfig)
			if err != nil {
				return err
			}
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(cfgPath); err == nil && !force {
			return fmt.Errorf("config %s already exists (use --force to overwrite)", cfgPath)
		}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		infof(cmd, "wrote %s tracking %s", cfgPath, abs)
		return nil
	},
}

func init() {
	initCmd.Flags().String("main-branch", "", "branch updates track (default main)")
	initCmd.Flags().String("remote", "", "upstream remote name (default origin)")
	initCmd.Flags().String("tag-pattern", "", "glob selecting release tags (default v*)")
	initCmd.Flags().Bool("local", false, "write a .upkeep.yaml in the current directory instead of the global config")
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
