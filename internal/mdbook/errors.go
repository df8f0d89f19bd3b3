package mdbook

// Sentinel errors for external process invocation. All of them are fatal for
// the run; the build service classifies them as process errors.

import "errors"

var (
	// ErrBinaryNotFound indicates the mdbook executable was not found on PATH.
	ErrBinaryNotFound = errors.New("mdbook binary not found")
	// ErrStartFailed indicates the process could not be started.
	ErrStartFailed = errors.New("mdbook could not be started")
	// ErrExecutionFailed indicates mdbook exited unsuccessfully.
	ErrExecutionFailed = errors.New("mdbook execution failed")
)
