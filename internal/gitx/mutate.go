// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"fmt"
	"strings"
)

// Fetch fetches a single branch from a remote.
func Fetch(ctx context.Context, r Runner, dir, remote, branch string) error {
	_, err := r.Run(ctx, dir, "fetch", remote, branch)
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", remote, branch, err)
	}
	return nil
}

// PullOptions control how Pull integrates upstream commits.
type PullOptions struct {
	Rebase    bool
	Autostash bool
}

// Pull integrates upstream into the current branch and returns the raw
// command output. Callers must scan the output for conflict markers; git
// can exit zero with textual conflicts under some merge drivers.
func Pull(ctx context.Context, r Runner, dir string, opts PullOptions) (string, error) {
	args := []string{"pull"}
	if opts.Rebase {
		args = append(args, "--rebase")
	}
	if opts.Autostash {
		args = append(args, "--autostash")
	}
	return r.Run(ctx, dir, args...)
}

// Merge merges ref into the current branch and returns the raw output.
func Merge(ctx context.Context, r Runner, dir, ref string) (string, error) {
	return r.Run(ctx, dir, "merge", "--no-edit", ref)
}

// StashPush stashes local changes including untracked files. It returns
// false when there was nothing to stash.
func StashPush(ctx context.Context, r Runner, dir, message string) (bool, error) {
	out, err := r.Run(ctx, dir, "stash", "push", "-u", "-m", message)
	if err != nil {
		return false, fmt.Errorf("stash push: %w", err)
	}
	if strings.Contains(out, "No local changes") {
		return false, nil
	}
	return true, nil
}

// StashPop restores the most recent stash entry.
func StashPop(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "stash", "pop")
	if err != nil {
		return fmt.Errorf("stash pop: %w", err)
	}
	return nil
}

// MergeAbort aborts an in-progress merge. Failure usually means no merge
// was in progress; callers decide whether that matters.
func MergeAbort(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "merge", "--abort")
	return err
}

// RebaseAbort aborts an in-progress rebase.
func RebaseAbort(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "rebase", "--abort")
	return err
}

// ResetHard resets the working tree and index to the given commit.
func ResetHard(ctx context.Context, r Runner, dir, commit string) error {
	_, err := r.Run(ctx, dir, "reset", "--hard", commit)
	if err != nil {
		return fmt.Errorf("reset --hard %s: %w", commit, err)
	}
	return nil
}

// CheckoutDetached checks out a ref as a detached HEAD.
func CheckoutDetached(ctx context.Context, r Runner, dir, ref string) error {
	_, err := r.Run(ctx, dir, "checkout", "--detach", ref)
	if err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

// CheckoutPaths restores the given paths from the index.
func CheckoutPaths(ctx context.Context, r Runner, dir string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout", "--"}, paths...)
	_, err := r.Run(ctx, dir, args...)
	return err
}
