// Package mdbook runs the external mdbook binary.
package mdbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/observability"
)

// DefaultBinary is the executable looked up on PATH when none is configured.
const DefaultBinary = "mdbook"

// Subcommand is the single positional argument passed to mdbook.
type Subcommand string

const (
	SubcommandTest  Subcommand = "test"
	SubcommandBuild Subcommand = "build"
)

// Valid reports whether s is a subcommand bookstage knows how to run.
func (s Subcommand) Valid() bool {
	return s == SubcommandTest || s == SubcommandBuild
}

// Runner abstracts how an mdbook subcommand is executed, so the build
// orchestration can run against the real binary or a fake in tests.
type Runner interface {
	Run(ctx context.Context, sub Subcommand) error
}

// BinaryRunner invokes the mdbook binary as a child process and waits for it.
type BinaryRunner struct {
	// Binary is a name looked up on PATH or a path. Empty means DefaultBinary.
	Binary string
	// Dir is the working directory of the child; empty means the current one.
	Dir string
	// ExtraArgs are appended after the subcommand.
	ExtraArgs []string
	// Env entries (KEY=VALUE) are added to the inherited environment.
	Env []string
	// Stdout and Stderr default to the parent's streams.
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long a canceled child may take to exit after the
	// interrupt before it is killed. Zero means 10s.
	WaitDelay time.Duration
}

// Run executes `mdbook <sub> [ExtraArgs...]`.
func (r *BinaryRunner) Run(ctx context.Context, sub Subcommand) error {
	if !sub.Valid() {
		return fmt.Errorf("%w: unknown subcommand %q", ErrStartFailed, sub)
	}

	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBinaryNotFound, err)
	}

	args := append([]string{string(sub)}, r.ExtraArgs...)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = orDefault(r.Stdout, os.Stdout)
	cmd.Stderr = orDefault(r.Stderr, os.Stderr)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Cancel = func() error {
		return interrupt(cmd.Process)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 10 * time.Second
	}

	observability.DebugContext(ctx, "Invoking mdbook", logfields.Binary(path), slog.Any("args", args))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	err = cmd.Wait()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s interrupted: %w", ErrExecutionFailed, sub, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		observability.WarnContext(ctx, "mdbook exited unsuccessfully", logfields.ExitCode(exitErr.ExitCode()))
		return &ExitError{Subcommand: sub, Code: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("%w: %s: %w", ErrExecutionFailed, sub, err)
}

// ExitError reports a non-zero mdbook exit status.
type ExitError struct {
	Subcommand Subcommand
	Code       int
	Err        error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: mdbook %s exited with status %d", ErrExecutionFailed, e.Subcommand, e.Code)
}

// Unwrap exposes ErrExecutionFailed and the underlying *exec.ExitError.
func (e *ExitError) Unwrap() []error {
	return []error{ErrExecutionFailed, e.Err}
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// NoopRunner performs no work; useful in tests or for a dry run that only
// exercises staging.
type NoopRunner struct{}

func (NoopRunner) Run(ctx context.Context, sub Subcommand) error {
	observability.DebugContext(ctx, "NoopRunner skipping mdbook", logfields.Step(string(sub)))
	return nil
}
