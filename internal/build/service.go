package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/manifest"
	"git.home.luguber.info/inful/bookstage/internal/mdbook"
	"git.home.luguber.info/inful/bookstage/internal/metrics"
	"git.home.luguber.info/inful/bookstage/internal/observability"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// Plan is the ordered list of mdbook subcommands a run executes.
type Plan []mdbook.Subcommand

var (
	// PlanAll tests the book, then renders it.
	PlanAll = Plan{mdbook.SubcommandTest, mdbook.SubcommandBuild}
	// PlanRender only renders.
	PlanRender = Plan{mdbook.SubcommandBuild}
	// PlanTest only tests.
	PlanTest = Plan{mdbook.SubcommandTest}
)

// Request contains the inputs of one run.
type Request struct {
	Plan  Plan
	Stage stage.Options
}

// Status is the outcome of a run.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusFailed        Status = "failed"
	StatusCanceled      Status = "canceled"
	StatusRestoreFailed Status = "restore_failed"
)

// IsSuccess returns true if the run completed and the files were restored.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// StepResult records one executed subcommand.
type StepResult struct {
	Step     mdbook.Subcommand
	Duration time.Duration
	Err      error
}

// Result contains the outcome of a run.
type Result struct {
	RunID     string
	Status    Status
	Steps     []StepResult
	Relocated int
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Service executes plans with a Runner.
type Service struct {
	runner   mdbook.Runner
	recorder metrics.Recorder
	out      io.Writer
	newID    func() string
}

// NewService creates a Service that prints status lines to stdout and
// records no metrics.
func NewService(runner mdbook.Runner) *Service {
	return &Service{
		runner:   runner,
		recorder: metrics.NoopRecorder{},
		out:      os.Stdout,
		newID:    uuid.NewString,
	}
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithOutput sets where user-facing status lines are written.
func (s *Service) WithOutput(w io.Writer) *Service {
	if w == nil {
		w = io.Discard
	}
	s.out = w
	return s
}

// Run stages the book, executes req.Plan and restores the files.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: s.newID(), StartTime: start}
	ctx = observability.WithRunID(ctx, result.RunID)

	if err := validatePlan(req.Plan); err != nil {
		s.finish(result, StatusFailed)
		return result, err
	}
	if s.runner == nil {
		s.finish(result, StatusFailed)
		return result, foundationerrors.ConfigError("mdbook runner required").Build()
	}

	full := len(req.Plan) > 1
	if full {
		fmt.Fprintln(s.out, "Building start...")
	}

	err := stage.Run(ctx, req.Stage, func(ctx context.Context, g *stage.Guard) error {
		result.Relocated = g.Len()
		s.recorder.SetRelocatedFiles(g.Len())
		ctx = observability.WithStage(ctx, "execute")
		for _, step := range req.Plan {
			if err := s.runStep(ctx, step, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		status, classified := s.classify(ctx, err, req, result)
		s.finish(result, status)
		return result, classified
	}

	if full {
		fmt.Fprintln(s.out, "Building complete.")
	}
	s.finish(result, StatusSuccess)
	observability.InfoContext(ctx, "Run complete",
		logfields.Count(result.Relocated),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

func (s *Service) runStep(ctx context.Context, step mdbook.Subcommand, result *Result) error {
	ctx = observability.WithStep(ctx, string(step))
	fmt.Fprintf(s.out, "%s...", stepLabel(step))

	stepStart := time.Now()
	err := s.runner.Run(ctx, step)
	d := time.Since(stepStart)
	result.Steps = append(result.Steps, StepResult{Step: step, Duration: d, Err: err})
	s.recorder.ObserveStepDuration(string(step), d)

	if err != nil {
		fmt.Fprintln(s.out, "Failed.")
		if ctx.Err() != nil {
			s.recorder.IncStepResult(string(step), metrics.ResultCanceled)
		} else {
			s.recorder.IncStepResult(string(step), metrics.ResultFailed)
		}
		observability.ErrorContext(ctx, "mdbook step failed", logfields.Error(err))
		return err
	}
	fmt.Fprintln(s.out, "Done.")
	s.recorder.IncStepResult(string(step), metrics.ResultSuccess)
	return nil
}

// classify maps a run error to a status and a classified error. A restore
// failure wins over any other cause.
func (s *Service) classify(ctx context.Context, err error, req Request, result *Result) (Status, error) {
	step := ""
	if n := len(result.Steps); n > 0 && result.Steps[n-1].Err != nil {
		step = string(result.Steps[n-1].Step)
	}

	switch {
	case errors.Is(err, stage.ErrRestoreFailed):
		left := stage.FailedRestores(err)
		s.recorder.IncRestoreFailures(left)
		observability.ErrorContext(ctx, "Files left staged", logfields.Count(left), logfields.Error(err))
		b := foundationerrors.RestoreError(err).WithContext("left_staged", left)
		if step != "" {
			b = b.WithContext("step", step)
		}
		return StatusRestoreFailed, b.Build()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled, foundationerrors.WrapError(err, foundationerrors.CategoryRuntime, "run canceled").Build()
	case errors.Is(err, manifest.ErrUnreadable),
		errors.Is(err, manifest.ErrMalformedEntry),
		errors.Is(err, manifest.ErrUnsafePath):
		return StatusFailed, foundationerrors.ManifestError(err, manifestPath(req.Stage)).Build()
	case errors.Is(err, stage.ErrRelocationFailed):
		return StatusFailed, foundationerrors.RelocationError(err).Build()
	case step != "":
		return StatusFailed, foundationerrors.ProcessError(err, step).Build()
	default:
		return StatusFailed, foundationerrors.InternalError(err, "run failed").Build()
	}
}

func (s *Service) finish(result *Result, status Status) {
	result.Status = status
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	s.recorder.ObserveRunDuration(result.Duration)
	s.recorder.IncRunOutcome(outcomeFor(status))
}

func validatePlan(plan Plan) error {
	if len(plan) == 0 {
		return foundationerrors.ValidationError("empty plan").Build()
	}
	for _, step := range plan {
		if !step.Valid() {
			return foundationerrors.ValidationError(fmt.Sprintf("unknown mdbook subcommand %q", step)).Build()
		}
	}
	return nil
}

func stepLabel(step mdbook.Subcommand) string {
	if step == mdbook.SubcommandTest {
		return "Testing"
	}
	return "Rendering"
}

func outcomeFor(status Status) metrics.RunOutcomeLabel {
	switch status {
	case StatusSuccess:
		return metrics.RunOutcomeSuccess
	case StatusCanceled:
		return metrics.RunOutcomeCanceled
	case StatusRestoreFailed:
		return metrics.RunOutcomeRestoreFailed
	default:
		return metrics.RunOutcomeFailed
	}
}

func manifestPath(opts stage.Options) string {
	if opts.ManifestPath != "" {
		return opts.ManifestPath
	}
	return stage.DefaultManifestPath
}
