package errors

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type customError struct {
	msg string
}

func (e *customError) Error() string { return e.msg }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "manifest", err: ManifestError(fmt.Errorf("boom"), "src/SUMMARY.md").Build(), expected: 3},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "relocation", err: RelocationError(fmt.Errorf("rename")).Build(), expected: 11},
		{name: "process", err: ProcessError(fmt.Errorf("exit 1"), "test").Build(), expected: 11},
		{name: "restore", err: RestoreError(fmt.Errorf("rename")).Build(), expected: 13},
		{name: "internal", err: InternalError(nil, "oops").Build(), expected: 10},
		{name: "wrapped classified", err: fmt.Errorf("run: %w", RestoreError(nil).Build()), expected: 13},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	cfgErr := ConfigError("configuration file is not valid YAML").WithCause(fmt.Errorf("line 3")).Build()
	assert.Equal(t, "configuration file is not valid YAML", quiet.FormatError(cfgErr))
	assert.Equal(t, "[config:fatal] configuration file is not valid YAML: line 3", verbose.FormatError(cfgErr))

	procErr := ProcessError(fmt.Errorf("exit status 1"), "build").Build()
	assert.Equal(t, "process: external process failed: exit status 1", quiet.FormatError(procErr))

	restoreErr := RestoreError(fmt.Errorf("permission denied")).Build()
	assert.Contains(t, quiet.FormatError(restoreErr), "bookstage restore")

	assert.Equal(t, "Error: plain", quiet.FormatError(fmt.Errorf("plain")))
	assert.Empty(t, quiet.FormatError(nil))
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var out, logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(false, logger).WithOutput(&out)

	code := adapter.Report(RestoreError(fmt.Errorf("rename src/a.md: permission denied")).Build())
	assert.Equal(t, 13, code)
	assert.Contains(t, out.String(), "bookstage restore")
	assert.Contains(t, logs.String(), "category=restore")

	out.Reset()
	assert.Equal(t, 0, adapter.Report(nil))
	assert.Empty(t, out.String())
}
