package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyOriginal   = "original"
	KeyStaged     = "staged"
	KeyManifest   = "manifest"
	KeyRoot       = "root"
	KeyCount      = "count"
	KeyBinary     = "binary"
	KeyExitCode   = "exit_code"
	KeyLine       = "line"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr         { return slog.String(KeyRunID, id) }
func Step(name string) slog.Attr        { return slog.String(KeyStep, name) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Original(p string) slog.Attr       { return slog.String(KeyOriginal, p) }
func Staged(p string) slog.Attr         { return slog.String(KeyStaged, p) }
func Manifest(p string) slog.Attr       { return slog.String(KeyManifest, p) }
func Root(p string) slog.Attr           { return slog.String(KeyRoot, p) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Binary(b string) slog.Attr         { return slog.String(KeyBinary, b) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func Line(n int) slog.Attr              { return slog.Int(KeyLine, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
