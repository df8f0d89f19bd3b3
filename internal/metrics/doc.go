// Package metrics provides run and step metrics for bookstage.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so nothing needs a nil check:
//
//	svc := build.NewService(runner).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// A one-shot CLI run has no scrape window, so the CLI writes the registry to a
// textfile (see WriteTextfile) after the run when metrics.textfile is set. The
// long-running watch command can also serve the registry over HTTP via
// PrometheusRecorder.Handler.
package metrics
