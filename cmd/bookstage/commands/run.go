package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bookstage/internal/build"
	"git.home.luguber.info/inful/bookstage/internal/config"
	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/metrics"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// runEnv holds what every build command needs: guard options, the service
// and, when metrics are exported, the Prometheus recorder behind it.
type runEnv struct {
	opts     stage.Options
	svc      *build.Service
	recorder *metrics.PrometheusRecorder
	textfile string
}

func newRunEnv(g *Global, cfg *config.Config) (*runEnv, error) {
	opts, err := stageOptions(cfg)
	if err != nil {
		return nil, err
	}
	env := &runEnv{opts: opts, textfile: cfg.Metrics.Textfile}
	env.svc = build.NewService(g.runner(cfg, opts)).WithOutput(g.Stdout)
	if cfg.Metrics.Textfile != "" || cfg.Metrics.Listen != "" {
		env.recorder = metrics.NewPrometheusRecorder(nil)
		env.svc.WithRecorder(env.recorder)
	}
	return env, nil
}

// run executes plan once and flushes metrics, whatever the outcome.
func (e *runEnv) run(ctx context.Context, plan build.Plan) (*build.Result, error) {
	result, err := e.svc.Run(ctx, build.Request{Plan: plan, Stage: e.opts})
	if result != nil {
		slog.Debug("Run finished",
			logfields.RunID(result.RunID),
			slog.String("status", string(result.Status)),
			logfields.Count(result.Relocated),
			logfields.DurationMS(float64(result.Duration.Milliseconds())))
	}
	e.flushMetrics()
	return result, err
}

func (e *runEnv) flushMetrics() {
	if e.recorder == nil || e.textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(e.textfile, e.recorder.Registry()); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(e.textfile), logfields.Error(err))
	}
}

// runPlan is the shared body of all, render and test.
func runPlan(g *Global, root *CLI, plan build.Plan) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	env, err := newRunEnv(g, cfg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	_, err = env.run(ctx, plan)
	return err
}
