// Package lockfile reconciles an external plugin-manager lockfile against
// the commits actually installed, classifying each mismatch as behind or
// ahead by commit timestamp.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
)

// Entry is one pinned plugin in the lockfile.
type Entry struct {
	// Commit is the pinned commit hash.
	Commit string `json:"commit"`
	// Branch is the branch the pin was taken from.
	Branch string `json:"branch"`
}

// Lockfile maps plugin name to its pin.
type Lockfile map[string]Entry

// Load reads and parses a lockfile. A missing file yields an empty
// lockfile. Malformed JSON also yields an empty lockfile plus the parse
// error for the caller to log as a warning; reconciliation never crashes
// on bad lockfile data.
func Load(path string) (Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Lockfile{}, nil
		}
		return Lockfile{}, err
	}
	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return Lockfile{}, err
	}
	if lf == nil {
		lf = Lockfile{}
	}
	return lf, nil
}

// Names returns the plugin names in stable sorted order.
func (l Lockfile) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager is the capability interface to the external plugin manager.
// A no-op implementation is used when no manager is present, so callers
// never branch on availability at the call site.
type Manager interface {
	// Available reports whether the manager can answer queries at all.
	Available(ctx context.Context) bool
	// InstalledCommit returns the commit currently installed for a
	// plugin, or "" when the plugin is not installed.
	InstalledCommit(ctx context.Context, name string) (string, error)
	// CommitTimestamp returns the unix timestamp of a commit inside the
	// plugin's own repository.
	CommitTimestamp(ctx context.Context, name, commit string) (int64, error)
	// Restore asks the manager to re-sync plugins from the lockfile.
	Restore(ctx context.Context) error
}
