// Package session holds the mutable state shared across one upkeep
// process: the mutual-exclusion guards serializing mutating operations
// and the TTL-cached release metadata. The state is an explicitly owned
// object passed to components, never a package global.
package session

import (
	"sync"
	"time"

	"github.com/skaphos/upkeep/internal/model"
)

// Operation identifies a guarded long-running operation.
type Operation string

const (
	OpRefresh           Operation = "refresh"
	OpUpdate            Operation = "update"
	OpInstallingPlugins Operation = "install-plugins"
	OpSwitchingVersion  Operation = "switch-version"
)

// State is the per-process session state. The zero value is ready to use.
type State struct {
	mu       sync.Mutex
	inFlight map[Operation]bool

	needsUpdate     bool
	recentlyUpdated bool

	releases          []model.ReleaseMeta
	releasesFetchedAt time.Time
}

// New returns an empty session state.
func New() *State {
	return &State{inFlight: make(map[Operation]bool)}
}

// TryBegin marks op as in flight. It returns false when op is already
// running; the caller must then no-op or report "already in progress"
// rather than queue or abort the in-flight one.
func (s *State) TryBegin(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == nil {
		s.inFlight = make(map[Operation]bool)
	}
	if s.inFlight[op] {
		return false
	}
	s.inFlight[op] = true
	return true
}

// End clears the in-flight mark for op.
func (s *State) End(op Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, op)
}

// InProgress reports whether op is currently running.
func (s *State) InProgress(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[op]
}

// SetNeedsUpdate records whether the last snapshot found pending work.
func (s *State) SetNeedsUpdate(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsUpdate = v
}

// NeedsUpdate reports the last recorded pending-work flag.
func (s *State) NeedsUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsUpdate
}

// MarkRecentlyUpdated flags that an apply succeeded this session. The
// presentation layer consumes it as a restart reminder.
func (s *State) MarkRecentlyUpdated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentlyUpdated = true
	s.needsUpdate = false
}

// RecentlyUpdated reports whether an apply succeeded this session.
func (s *State) RecentlyUpdated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentlyUpdated
}

// CacheReleases stores fetched release metadata with its fetch time.
func (s *State) CacheReleases(releases []model.ReleaseMeta, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = releases
	s.releasesFetchedAt = at
}

// CachedReleases returns release metadata younger than ttl, or nil.
func (s *State) CachedReleases(ttl time.Duration, now time.Time) []model.ReleaseMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releases == nil || now.Sub(s.releasesFetchedAt) >= ttl {
		return nil
	}
	return s.releases
}
