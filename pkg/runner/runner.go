// Package runner provides command execution with timeout support. The
// Executor interface decouples callers from os/exec so tests can substitute
// scripted results.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrTimeout is returned when a command exceeds its deadline.
var ErrTimeout = errors.New("command timed out")

// SpawnError indicates the command could not be started at all, typically
// because the binary is not on PATH. Distinct from a nonzero exit.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("command not found: %s", e.Binary)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// CommandResult holds the outcome of one command invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Output returns stdout if non-empty, otherwise stderr. Many version checks
// (python3 among them) print to stderr.
func (r *CommandResult) Output() string {
	if strings.TrimSpace(r.Stdout) != "" {
		return r.Stdout
	}
	return r.Stderr
}

// Executor runs a single command line with a timeout.
type Executor interface {
	Run(ctx context.Context, command string, timeout time.Duration) (*CommandResult, error)
}

// Real executes commands via os/exec.
type Real struct{}

// Run splits command on whitespace, executes it, and captures both streams.
// The returned error is ErrTimeout on deadline, a *SpawnError when the binary
// cannot be started, or nil; a nonzero exit is not an error.
func (r *Real) Run(ctx context.Context, command string, timeout time.Duration) (*CommandResult, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty command")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// On Windows, retry through cmd.exe when the executable is not found so
	// shell builtins (echo, where, …) work transparently.
	if err != nil && runtime.GOOS == "windows" && isExecNotFound(err) {
		stdout.Reset()
		stderr.Reset()
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", command)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	}

	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %v: %s", ErrTimeout, duration.Round(time.Millisecond), command)
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if isExecNotFound(err) {
			return nil, &SpawnError{Binary: fields[0], Err: err}
		} else {
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
	}

	return &CommandResult{
		Stdout:   normalizeLineEndings(stdout.String()),
		Stderr:   normalizeLineEndings(stderr.String()),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

func isExecNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
