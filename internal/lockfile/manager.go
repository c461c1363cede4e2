// SPDX-License-Identifier: MIT
package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/skaphos/upkeep/internal/gitx"
)

// GitDirManager answers plugin queries against a directory of git clones,
// the layout used by lazy-style plugin managers: <dir>/<plugin-name> is a
// checkout of that plugin's repository.
type GitDirManager struct {
	// Dir is the plugin clone directory.
	Dir string
	// Runner executes git inside individual plugin clones.
	Runner gitx.Runner
	// RestoreArgs, when set, is the argv of an external restore command
	// run best-effort from Dir (for example the manager's headless
	// restore entrypoint). Empty disables Restore.
	RestoreArgs []string
	// RestoreRunner executes RestoreArgs. Required when RestoreArgs is set.
	RestoreRunner CommandRunner
}

// CommandRunner runs an arbitrary argv. It matches the process-runner
// shape so the same executor backs git and restore commands.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Available reports whether the plugin directory exists.
func (m *GitDirManager) Available(_ context.Context) bool {
	if strings.TrimSpace(m.Dir) == "" {
		return false
	}
	info, err := os.Stat(m.Dir)
	return err == nil && info.IsDir()
}

// InstalledCommit resolves HEAD of the plugin's clone. A missing clone is
// "not installed" (empty result), not an error.
func (m *GitDirManager) InstalledCommit(ctx context.Context, name string) (string, error) {
	dir := filepath.Join(m.Dir, name)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	commit, err := gitx.CurrentCommit(ctx, m.Runner, dir)
	if err != nil {
		return "", err
	}
	return commit, nil
}

// CommitTimestamp resolves the unix timestamp of a commit inside the
// plugin's own repository.
func (m *GitDirManager) CommitTimestamp(ctx context.Context, name, commit string) (int64, error) {
	return gitx.CommitTimestamp(ctx, m.Runner, filepath.Join(m.Dir, name), commit)
}

// Restore runs the configured external restore command.
func (m *GitDirManager) Restore(ctx context.Context) error {
	if len(m.RestoreArgs) == 0 || m.RestoreRunner == nil {
		return nil
	}
	_, err := m.RestoreRunner.Run(ctx, m.Dir, m.RestoreArgs...)
	return err
}

// NoopManager is the null implementation used when no plugin manager is
// configured. All queries report nothing installed.
type NoopManager struct{}

func (NoopManager) Available(context.Context) bool { return false }

func (NoopManager) InstalledCommit(context.Context, string) (string, error) { return "", nil }

func (NoopManager) CommitTimestamp(context.Context, string, string) (int64, error) {
	return 0, errors.New("no plugin manager configured")
}

func (NoopManager) Restore(context.Context) error { return nil }
