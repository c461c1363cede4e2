// SPDX-License-Identifier: MIT
// Package statuscache persists a small per-repository status snapshot so
// a fresh process can show something before the first full check, and so
// redundant checks can be skipped within a freshness window.
package statuscache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is bumped whenever Entry changes incompatibly. Entries
// with any other version are treated as absent.
const SchemaVersion = 1

// Entry is the persisted snapshot for one repository path.
type Entry struct {
	Version          int    `json:"version"`
	RepoPath         string `json:"repo_path"`
	LastCheckTime    int64  `json:"last_check_time"`
	LastCommitHash   string `json:"last_commit_hash"`
	Branch           string `json:"branch"`
	BehindCount      int    `json:"behind_count"`
	AheadCount       int    `json:"ahead_count"`
	NeedsUpdate      bool   `json:"needs_update"`
	HasPluginUpdates bool   `json:"has_plugin_updates"`
}

// Fresh reports whether the entry is younger than ttl.
func (e *Entry) Fresh(ttl time.Duration, now time.Time) bool {
	if e == nil || ttl <= 0 {
		return false
	}
	checked := time.Unix(e.LastCheckTime, 0)
	return now.Sub(checked) < ttl
}

// Cache reads and writes entries under a base directory, one JSON file
// per repository path.
type Cache struct {
	// Dir is the cache directory. Empty resolves to the user cache dir.
	Dir string
}

// DefaultDir returns the platform cache directory for upkeep.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "upkeep"), nil
}

func (c *Cache) dir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	return DefaultDir()
}

// FileFor returns the cache filename for a repository path: a truncated
// hash of the path, so unrelated repos never collide or overwrite.
func FileFor(repoPath string) string {
	sum := sha256.Sum256([]byte(repoPath))
	return hex.EncodeToString(sum[:])[:16] + ".json"
}

// Load returns the entry for repoPath, or nil when absent, stale-schema,
// or recorded for a different path. Every validation failure is fail-open:
// a bad cache entry means "no cache", never an error or wrong data.
func (c *Cache) Load(repoPath string) (*Entry, error) {
	dir, err := c.dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, FileFor(repoPath)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil
	}
	if entry.Version != SchemaVersion || entry.RepoPath != repoPath {
		return nil, nil
	}
	return &entry, nil
}

// Save writes the entry atomically (temp file + rename) so a concurrent
// reader never observes a partial file.
func (c *Cache) Save(entry *Entry) error {
	if entry == nil {
		return errors.New("cache entry is nil")
	}
	entry.Version = SchemaVersion
	dir, err := c.dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	target := filepath.Join(dir, FileFor(entry.RepoPath))
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Remove deletes the entry for repoPath. Missing entries are not an error.
func (c *Cache) Remove(repoPath string) error {
	dir, err := c.dir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, FileFor(repoPath)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
