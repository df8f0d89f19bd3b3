package stage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRelocationFailed indicates a manifest entry could not be staged.
	ErrRelocationFailed = errors.New("relocation failed")
	// ErrRestoreFailed indicates a staged file could not be moved back.
	ErrRestoreFailed = errors.New("restore failed")
)

// RecordError is a failed move of one record.
type RecordError struct {
	Record Record
	Err    error
}

// RestoreError lists every record that could not be moved back to its
// original path. It matches ErrRestoreFailed with errors.Is.
type RestoreError struct {
	Failures []RecordError
}

func (e *RestoreError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s -> %s: %v", f.Record.Staged, f.Record.Original, f.Err))
	}
	return fmt.Sprintf("%s: %d file(s) left staged: %s", ErrRestoreFailed, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes ErrRestoreFailed and every per-record cause.
func (e *RestoreError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrRestoreFailed)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// FailedRestores returns how many records err reports as left staged.
func FailedRestores(err error) int {
	var re *RestoreError
	if errors.As(err, &re) {
		return len(re.Failures)
	}
	return 0
}
