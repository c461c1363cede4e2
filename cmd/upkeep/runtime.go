// SPDX-License-Identifier: MIT
package upkeep

import (
	"os"
	"time"

	"github.com/skaphos/upkeep/internal/config"
	"github.com/skaphos/upkeep/internal/execx"
	"github.com/skaphos/upkeep/internal/github"
	"github.com/skaphos/upkeep/internal/lockfile"
	"github.com/skaphos/upkeep/internal/release"
	"github.com/skaphos/upkeep/internal/session"
	"github.com/skaphos/upkeep/internal/statuscache"
	"github.com/skaphos/upkeep/internal/updater"
	"github.com/spf13/cobra"
)

// loadConfig resolves and loads the effective config for a command run.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	debugf(cmd, "using config %s", cfgPath)
	return cfg, nil
}

// buildUpdater wires the full dependency graph for one command run.
func buildUpdater(cmd *cobra.Command, cfg *config.Config) (*updater.Updater, error) {
	timeout := time.Duration(cfg.Defaults.TimeoutSeconds) * time.Second
	gitRunner := &execx.Runner{Bin: "git", Timeout: timeout}
	argvRunner := &execx.ArgvRunner{Timeout: timeout}

	u := updater.New(cfg, gitRunner, session.New())
	u.Warn = func(format string, args ...any) { debugf(cmd, format, args...) }

	cacheDir, err := statuscache.DefaultDir()
	if err != nil {
		return nil, err
	}
	u.Cache = &statuscache.Cache{Dir: cacheDir}

	if cfg.PluginsDir != "" {
		u.Manager = &lockfile.GitDirManager{
			Dir:           cfg.PluginsDir,
			Runner:        gitRunner,
			RestoreArgs:   cfg.PluginRestore,
			RestoreRunner: argvRunner,
		}
	}
	if len(cfg.ToolsRestore) > 0 {
		u.Tools = &release.CommandRestorer{
			Dir:    cfg.RepoPath,
			Args:   cfg.ToolsRestore,
			Runner: argvRunner,
		}
	}
	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		// gh carries the user's auth; the REST fallback covers machines
		// without it.
		u.GitHub = &github.Fallback{Clients: []github.Client{
			&github.CLIClient{Runner: &execx.Runner{Bin: "gh", Timeout: timeout}},
			&github.HTTPClient{},
		}}
	}
	return u, nil
}

func assumeYes(cmd *cobra.Command) bool {
	yes, _ := cmd.Flags().GetBool("yes")
	return yes
}
