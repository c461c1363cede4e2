// Package update applies upstream commits to the tracked repository as a
// single linearizable fetch-apply-verify-rollback sequence.
package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skaphos/upkeep/internal/gitx"
)

// State names the steps of one apply sequence. Transitions are strictly
// sequential; each step runs only after the previous one completed.
type State string

const (
	StateIdle                State = "idle"
	StateResolvingBranch     State = "resolving-branch"
	StateSavingRollbackPoint State = "saving-rollback-point"
	StateCheckingWorkingTree State = "checking-working-tree"
	StateFetching            State = "fetching"
	StateApplying            State = "applying"
	StateRollingBack         State = "rolling-back"
	StateSuccess             State = "success"
)

// conflictMarkers are scanned in apply output regardless of exit code;
// git can exit zero with textual conflicts under some merge drivers.
var conflictMarkers = []string{
	"CONFLICT",
	"Automatic merge failed",
	"error:",
	"fatal:",
}

// ConflictError reports conflict markers in the apply output.
type ConflictError struct {
	Marker string
	Output string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("apply produced conflicts (%s)", e.Marker)
}

// RollbackFailedError is the one fatal-class failure: the apply failed
// and restoring the rollback point also failed, so the repository may be
// in an inconsistent state with no automated recovery left.
type RollbackFailedError struct {
	ApplyErr    error
	RollbackErr error
	Commit      string
}

func (e *RollbackFailedError) Error() string {
	return fmt.Sprintf("rollback to %s failed after apply error: %v (apply: %v)", e.Commit, e.RollbackErr, e.ApplyErr)
}

func (e *RollbackFailedError) Unwrap() error { return e.ApplyErr }

// ErrUnknownBranch means the current branch could not be resolved.
var ErrUnknownBranch = errors.New("cannot determine current branch")

// Options configure one apply sequence.
type Options struct {
	RepoPath      string
	MainBranch    string
	RemoteName    string
	LockfileGlobs []string
	PullRebase    bool
	PullAutostash bool
}

// Result reports a finished apply sequence.
type Result struct {
	// Branch is the branch the apply ran on.
	Branch string
	// RollbackCommit is the commit captured before any mutation.
	RollbackCommit string
	// Output is the raw merge/pull output.
	Output string
	// RolledBack reports that the rollback point was restored.
	RolledBack bool
	// State is the terminal state.
	State State
}

// Machine runs the apply sequence. One Machine instance drives one
// sequence; callers serialize sequences per repository with the session
// updating guard.
type Machine struct {
	Runner gitx.Runner
	Opts   Options

	state State
}

// NewMachine returns an idle machine for one apply.
func NewMachine(runner gitx.Runner, opts Options) *Machine {
	return &Machine{Runner: runner, Opts: opts, state: StateIdle}
}

// State returns the machine's current step.
func (m *Machine) State() State { return m.state }

// Apply runs the full sequence. Mutation begins only after the rollback
// point is captured, so an interrupted process is left at worst on a
// restorable commit, never mid-merge.
func (m *Machine) Apply(ctx context.Context) (*Result, error) {
	m.state = StateResolvingBranch
	branch := gitx.CurrentBranch(ctx, m.Runner, m.Opts.RepoPath)
	if branch == "unknown" || branch == "HEAD" {
		m.state = StateIdle
		return nil, ErrUnknownBranch
	}

	m.state = StateSavingRollbackPoint
	rollback, err := gitx.CurrentCommit(ctx, m.Runner, m.Opts.RepoPath)
	if err != nil {
		m.state = StateIdle
		return nil, err
	}
	res := &Result{Branch: branch, RollbackCommit: rollback}

	m.state = StateCheckingWorkingTree
	dirty, err := gitx.HasUncommittedChanges(ctx, m.Runner, m.Opts.RepoPath, m.Opts.LockfileGlobs)
	if err != nil {
		m.state = StateIdle
		return nil, err
	}

	// Fetch failure is terminal but clean: nothing was mutated yet, so it
	// is reported, not rolled back.
	m.state = StateFetching
	if err := gitx.Fetch(ctx, m.Runner, m.Opts.RepoPath, m.Opts.RemoteName, m.Opts.MainBranch); err != nil {
		m.state = StateIdle
		return nil, err
	}

	m.state = StateApplying
	out, applyErr := m.apply(ctx, branch, dirty)
	res.Output = out
	if applyErr == nil {
		applyErr = detectConflict(out)
	}
	if applyErr == nil {
		m.state = StateSuccess
		res.State = StateSuccess
		return res, nil
	}

	m.state = StateRollingBack
	res.State = StateRollingBack
	if rbErr := m.rollback(ctx, rollback); rbErr != nil {
		m.state = StateIdle
		return res, &RollbackFailedError{ApplyErr: applyErr, RollbackErr: rbErr, Commit: rollback}
	}
	res.RolledBack = true
	m.state = StateIdle
	return res, applyErr
}

func (m *Machine) apply(ctx context.Context, branch string, dirty bool) (string, error) {
	dir := m.Opts.RepoPath
	if branch == m.Opts.MainBranch {
		return gitx.Pull(ctx, m.Runner, dir, gitx.PullOptions{
			Rebase:    m.Opts.PullRebase,
			Autostash: m.Opts.PullAutostash,
		})
	}
	// Feature branch: merge upstream main in, stashing local changes
	// around the merge when present.
	stashed := false
	if dirty {
		var err error
		stashed, err = gitx.StashPush(ctx, m.Runner, dir, "upkeep: pre-merge stash")
		if err != nil {
			return "", err
		}
	}
	out, err := gitx.Merge(ctx, m.Runner, dir, m.Opts.RemoteName+"/"+m.Opts.MainBranch)
	if err != nil {
		return out, err
	}
	if stashed {
		if err := gitx.StashPop(ctx, m.Runner, dir); err != nil {
			// The stash entry survives a failed pop; rollback restores the
			// tree and the user keeps their changes.
			return out, err
		}
	}
	return out, nil
}

func (m *Machine) rollback(ctx context.Context, commit string) error {
	// Abort any in-progress merge/rebase first; failures here usually
	// mean none was in progress.
	_ = gitx.MergeAbort(ctx, m.Runner, m.Opts.RepoPath)
	_ = gitx.RebaseAbort(ctx, m.Runner, m.Opts.RepoPath)
	return gitx.ResetHard(ctx, m.Runner, m.Opts.RepoPath, commit)
}

func detectConflict(output string) error {
	for _, marker := range conflictMarkers {
		if strings.Contains(output, marker) {
			return &ConflictError{Marker: marker, Output: output}
		}
	}
	return nil
}
