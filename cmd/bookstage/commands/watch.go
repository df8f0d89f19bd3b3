package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/bookstage/internal/build"
	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Poll     time.Duration `help:"Also re-render on this interval; overrides watch.poll_interval"`
	Debounce time.Duration `help:"Quiet period before re-rendering; overrides watch.debounce"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	env, err := newRunEnv(g, cfg)
	if err != nil {
		return err
	}

	opts := watch.Options{
		Root:         env.opts.Root,
		Debounce:     cfg.Watch.DebounceDuration(),
		PollInterval: cfg.Watch.PollDuration(),
		Ignore:       cfg.Watch.Ignore,
	}
	if w.Poll > 0 {
		opts.PollInterval = w.Poll
	}
	if w.Debounce > 0 {
		opts.Debounce = w.Debounce
	}

	ctx, stop := signalContext()
	defer stop()

	if cfg.Metrics.Listen != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Listen, env.recorder.Handler())
		if err != nil {
			return err
		}
		defer shutdown()
	}

	watcher := watch.New(opts, func(ctx context.Context) error {
		_, err := env.run(ctx, build.PlanRender)
		return err
	})
	if err := watcher.Run(ctx); err != nil {
		if _, ok := foundationerrors.AsClassified(err); ok {
			return err
		}
		return foundationerrors.WrapError(err, foundationerrors.CategoryRuntime, "watch failed").Build()
	}
	return nil
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(addr string, h http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryRuntime, "metrics listener").
			WithContext("listen", addr).
			Build()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server stopped", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("listen", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
