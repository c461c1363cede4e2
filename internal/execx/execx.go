// SPDX-License-Identifier: MIT
// Package execx runs external commands with an enforced per-call timeout.
// Every other component that shells out (git, gh) is built on it.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single subprocess call when the runner has no
// explicit timeout configured.
const DefaultTimeout = 60 * time.Second

// TimeoutError reports a subprocess that exceeded its deadline and was killed.
// It is deliberately distinct from a non-zero exit.
type TimeoutError struct {
	Bin     string
	Args    []string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s", e.Bin, strings.Join(e.Args, " "), e.Timeout)
}

// SpawnError reports that the process could not be started at all
// (missing binary, bad working directory).
type SpawnError struct {
	Bin string
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("%s: %v", e.Bin, e.Err) }

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Bin    string
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s %s: %s (exit %d)", e.Bin, strings.Join(e.Args, " "), e.Stderr, e.Code)
	}
	return fmt.Sprintf("%s %s: exit %d", e.Bin, strings.Join(e.Args, " "), e.Code)
}

// Runner executes a fixed binary with per-call arguments. Arguments are
// passed as an argv vector, never through a shell, so metacharacters in
// paths or tag names cannot be interpreted.
type Runner struct {
	// Bin is the binary to execute (for example "git" or "gh").
	Bin string
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Run executes the binary in dir and returns trimmed stdout.
// The working directory is set explicitly on every call; nothing relies
// on ambient process state between calls.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, r.Bin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", &TimeoutError{Bin: r.Bin, Args: args, Timeout: timeout}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return strings.TrimSpace(stdout.String()), &ExitError{
			Bin:    r.Bin,
			Args:   args,
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return "", &SpawnError{Bin: r.Bin, Err: err}
}

// ArgvRunner executes a full argv where the first element is the binary.
// It backs user-configured restore commands, which name their own binary.
type ArgvRunner struct {
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Run executes args[0] with the remaining arguments in dir.
func (r *ArgvRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", &SpawnError{Bin: "", Err: errors.New("empty command")}
	}
	runner := Runner{Bin: args[0], Timeout: r.Timeout}
	return runner.Run(ctx, dir, args[1:]...)
}

// IsTimeout reports whether err (or anything it wraps) is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ExitCode extracts the exit code from an ExitError, or -1.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}
