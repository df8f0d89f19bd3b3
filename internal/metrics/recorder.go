package metrics

import "time"

// ResultLabel enumerates step result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// RunOutcomeLabel is the final status of one relocate/execute/restore run.
type RunOutcomeLabel string

const (
	RunOutcomeSuccess       RunOutcomeLabel = "success"
	RunOutcomeFailed        RunOutcomeLabel = "failed"
	RunOutcomeRestoreFailed RunOutcomeLabel = "restore_failed"
	RunOutcomeCanceled      RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for run and step metrics.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	ObserveStepDuration(step string, d time.Duration)
	IncStepResult(step string, result ResultLabel)
	IncRunOutcome(outcome RunOutcomeLabel)
	SetRelocatedFiles(n int)
	IncRestoreFailures(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration)          {}
func (NoopRecorder) ObserveStepDuration(string, time.Duration) {}
func (NoopRecorder) IncStepResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)             {}
func (NoopRecorder) SetRelocatedFiles(int)                     {}
func (NoopRecorder) IncRestoreFailures(int)                    {}
