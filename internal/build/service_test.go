package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/mdbook"
	"git.home.luguber.info/inful/bookstage/internal/metrics"
	"git.home.luguber.info/inful/bookstage/internal/observability"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// fakeRunner records invoked subcommands and runs an optional hook per step.
type fakeRunner struct {
	calls []mdbook.Subcommand
	hook  func(ctx context.Context, sub mdbook.Subcommand) error
}

func (f *fakeRunner) Run(ctx context.Context, sub mdbook.Subcommand) error {
	f.calls = append(f.calls, sub)
	if f.hook != nil {
		return f.hook(ctx, sub)
	}
	return nil
}

// captureRecorder keeps what a run reported.
type captureRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes []metrics.RunOutcomeLabel
	steps    map[string]metrics.ResultLabel
	restored int
	staged   int
}

func (c *captureRecorder) IncRunOutcome(o metrics.RunOutcomeLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *captureRecorder) IncStepResult(step string, r metrics.ResultLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.steps == nil {
		c.steps = map[string]metrics.ResultLabel{}
	}
	c.steps[step] = r
}

func (c *captureRecorder) IncRestoreFailures(n int) { c.restored += n }
func (c *captureRecorder) SetRelocatedFiles(n int)  { c.staged = n }

func setupBook(t *testing.T, summary string, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "SUMMARY.md"), []byte(summary), 0o600))
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

func newTestService(r mdbook.Runner, out *bytes.Buffer, rec metrics.Recorder) *Service {
	svc := NewService(r).WithOutput(out).WithRecorder(rec)
	svc.newID = func() string { return "run-1" }
	return svc
}

const introSummary = "# Summary\n\n- [Intro](./intro.md)\n- [Guide](./guide/setup.md)\n"

func introFiles() map[string]string {
	return map[string]string{"intro.md": "X", "guide/setup.md": "setup"}
}

func TestStatus_IsSuccess(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusSuccess, true},
		{StatusFailed, false},
		{StatusCanceled, false},
		{StatusRestoreFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsSuccess())
		})
	}
}

func TestRun_PlanAllStagesDuringExecution(t *testing.T) {
	root := setupBook(t, introSummary, introFiles())
	runner := &fakeRunner{hook: func(ctx context.Context, sub mdbook.Subcommand) error {
		assert.FileExists(t, filepath.Join(root, "src", "intro.md"))
		assert.FileExists(t, filepath.Join(root, "src", "guide", "setup.md"))
		assert.NoFileExists(t, filepath.Join(root, "intro.md"))
		assert.Equal(t, "run-1", observability.GetContext(ctx).RunID)
		assert.Equal(t, string(sub), observability.GetContext(ctx).Step)
		return nil
	}}
	var out bytes.Buffer
	rec := &captureRecorder{}

	result, err := newTestService(runner, &out, rec).Run(context.Background(), Request{
		Plan:  PlanAll,
		Stage: stage.Options{Root: root},
	})
	require.NoError(t, err)

	assert.Equal(t, []mdbook.Subcommand{mdbook.SubcommandTest, mdbook.SubcommandBuild}, runner.calls)
	assert.Equal(t, "Building start...\nTesting...Done.\nRendering...Done.\nBuilding complete.\n", out.String())
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 2, result.Relocated)
	require.Len(t, result.Steps, 2)
	assert.NoError(t, result.Steps[0].Err)
	assert.False(t, result.EndTime.Before(result.StartTime))

	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunOutcomeSuccess}, rec.outcomes)
	assert.Equal(t, metrics.ResultSuccess, rec.steps["build"])
	assert.Equal(t, 2, rec.staged)

	assert.FileExists(t, filepath.Join(root, "intro.md"))
	assert.FileExists(t, filepath.Join(root, "guide", "setup.md"))
	assert.NoFileExists(t, filepath.Join(root, "src", "intro.md"))
}

func TestRun_SingleStepPlansPrintOnlyTheStep(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want string
	}{
		{"render", PlanRender, "Rendering...Done.\n"},
		{"test", PlanTest, "Testing...Done.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setupBook(t, introSummary, introFiles())
			runner := &fakeRunner{}
			var out bytes.Buffer

			_, err := newTestService(runner, &out, nil).Run(context.Background(), Request{Plan: tt.plan, Stage: stage.Options{Root: root}})
			require.NoError(t, err)
			assert.Equal(t, []mdbook.Subcommand(tt.plan), runner.calls)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRun_StepFailureStopsPlanAndRestores(t *testing.T) {
	root := setupBook(t, introSummary, introFiles())
	runner := &fakeRunner{hook: func(context.Context, mdbook.Subcommand) error {
		return fmt.Errorf("%w: exit 1", mdbook.ErrExecutionFailed)
	}}
	var out bytes.Buffer
	rec := &captureRecorder{}

	result, err := newTestService(runner, &out, rec).Run(context.Background(), Request{Plan: PlanAll, Stage: stage.Options{Root: root}})
	require.Error(t, err)
	assert.ErrorIs(t, err, mdbook.ErrExecutionFailed)
	assert.Equal(t, foundationerrors.CategoryProcess, foundationerrors.GetCategory(err))

	classified, ok := foundationerrors.AsClassified(err)
	require.True(t, ok)
	step, _ := classified.Context().GetString("step")
	assert.Equal(t, "test", step)

	assert.Equal(t, []mdbook.Subcommand{mdbook.SubcommandTest}, runner.calls)
	assert.Equal(t, "Building start...\nTesting...Failed.\n", out.String())
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, metrics.ResultFailed, rec.steps["test"])
	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunOutcomeFailed}, rec.outcomes)

	assert.FileExists(t, filepath.Join(root, "intro.md"))
	assert.NoFileExists(t, filepath.Join(root, "src", "intro.md"))
}

func TestRun_MissingSourceNeverStartsProcess(t *testing.T) {
	root := setupBook(t, introSummary, map[string]string{"intro.md": "X"})
	runner := &fakeRunner{}
	var out bytes.Buffer

	result, err := newTestService(runner, &out, nil).Run(context.Background(), Request{Plan: PlanAll, Stage: stage.Options{Root: root}})
	require.ErrorIs(t, err, stage.ErrRelocationFailed)
	assert.Equal(t, foundationerrors.CategoryRelocation, foundationerrors.GetCategory(err))
	assert.Empty(t, runner.calls)
	assert.Equal(t, StatusFailed, result.Status)
	assert.FileExists(t, filepath.Join(root, "intro.md"))
}

func TestRun_MalformedManifest(t *testing.T) {
	root := setupBook(t, "- [Broken](./)\n", nil)
	runner := &fakeRunner{}

	_, err := newTestService(runner, &bytes.Buffer{}, nil).Run(context.Background(), Request{Plan: PlanTest, Stage: stage.Options{Root: root}})
	require.Error(t, err)
	assert.Equal(t, foundationerrors.CategoryManifest, foundationerrors.GetCategory(err))
	assert.Empty(t, runner.calls)
}

func TestRun_RestoreFailureDominates(t *testing.T) {
	root := setupBook(t, introSummary, introFiles())
	runner := &fakeRunner{hook: func(context.Context, mdbook.Subcommand) error {
		// The tool "consumes" a staged file, so it cannot be moved back.
		require.NoError(t, os.Remove(filepath.Join(root, "src", "intro.md")))
		return errors.New("boom")
	}}
	rec := &captureRecorder{}

	result, err := newTestService(runner, &bytes.Buffer{}, rec).Run(context.Background(), Request{Plan: PlanRender, Stage: stage.Options{Root: root}})
	require.Error(t, err)
	assert.ErrorIs(t, err, stage.ErrRestoreFailed)
	assert.Equal(t, foundationerrors.CategoryRestore, foundationerrors.GetCategory(err))
	assert.Equal(t, StatusRestoreFailed, result.Status)
	assert.Equal(t, 1, rec.restored)
	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunOutcomeRestoreFailed}, rec.outcomes)

	// The other file still made it back.
	assert.FileExists(t, filepath.Join(root, "guide", "setup.md"))
}

func TestRun_Canceled(t *testing.T) {
	root := setupBook(t, introSummary, introFiles())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{hook: func(ctx context.Context, sub mdbook.Subcommand) error {
		cancel()
		return fmt.Errorf("%w: %s interrupted: %w", mdbook.ErrExecutionFailed, sub, ctx.Err())
	}}
	rec := &captureRecorder{}

	result, err := newTestService(runner, &bytes.Buffer{}, rec).Run(ctx, Request{Plan: PlanAll, Stage: stage.Options{Root: root}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, foundationerrors.CategoryRuntime, foundationerrors.GetCategory(err))
	assert.Equal(t, StatusCanceled, result.Status)
	assert.Equal(t, metrics.ResultCanceled, rec.steps["test"])
	assert.Len(t, runner.calls, 1)
	assert.FileExists(t, filepath.Join(root, "intro.md"))
}

func TestRun_InvalidPlan(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
	}{
		{"empty", nil},
		{"unknown", Plan{"serve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			result, err := newTestService(runner, &bytes.Buffer{}, nil).Run(context.Background(), Request{Plan: tt.plan})
			require.Error(t, err)
			assert.Equal(t, foundationerrors.CategoryValidation, foundationerrors.GetCategory(err))
			assert.Equal(t, StatusFailed, result.Status)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestRun_NilRunner(t *testing.T) {
	_, err := NewService(nil).WithOutput(nil).Run(context.Background(), Request{Plan: PlanAll})
	require.Error(t, err)
	assert.Equal(t, foundationerrors.CategoryConfig, foundationerrors.GetCategory(err))
}

func TestRun_DurationRecorded(t *testing.T) {
	root := setupBook(t, "# Summary\n", nil)
	runner := &fakeRunner{hook: func(context.Context, mdbook.Subcommand) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}}
	result, err := newTestService(runner, &bytes.Buffer{}, nil).Run(context.Background(), Request{Plan: PlanRender, Stage: stage.Options{Root: root}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Relocated)
	assert.GreaterOrEqual(t, result.Duration, 5*time.Millisecond)
	assert.GreaterOrEqual(t, result.Steps[0].Duration, 5*time.Millisecond)
}
