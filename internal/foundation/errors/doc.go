// Package errors provides the classified error type used across bookstage.
//
// Every failure that reaches the CLI carries a category (manifest, relocation,
// restore, process, ...) and a severity. The CLI adapter turns the category
// into an exit code.
//
// Package-level sentinel errors (manifest.ErrUnreadable, stage.ErrRestoreFailed,
// mdbook.ErrExecutionFailed, ...) stay reachable through errors.Is because
// ClassifiedError unwraps to its cause.
//
// Example usage:
//
//	err := errors.RelocationError(cause).
//		WithContext("path", original).
//		Build()
package errors
