// Package watch re-runs a build whenever the book's sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc performs one build cycle.
type BuildFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	// Root is watched recursively.
	Root string
	// Debounce is how long the tree must be quiet before a rebuild.
	Debounce time.Duration
	// PollInterval, when positive, also rebuilds on a fixed schedule.
	PollInterval time.Duration
	// Ignore lists directory names that are never watched (e.g. "book").
	Ignore []string
}

// Watcher serializes build cycles triggered by filesystem events and an
// optional poll schedule.
type Watcher struct {
	opts   Options
	build  BuildFunc
	ignore map[string]struct{}

	rebuild chan struct{}

	mu         sync.Mutex
	timer      *time.Timer
	busy       bool
	quietUntil time.Time
	cycles     int
}

// New creates a Watcher. build runs once at start and after every change.
func New(opts Options, build BuildFunc) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ignore := make(map[string]struct{}, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignore[name] = struct{}{}
	}
	return &Watcher{
		opts:    opts,
		build:   build,
		ignore:  ignore,
		rebuild: make(chan struct{}, 1),
	}
}

// Cycles returns how many build cycles have completed.
func (w *Watcher) Cycles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cycles
}

// Run builds once, then watches until ctx is done. It returns nil on
// cancellation and an error if watching cannot start or a cycle fails to
// restore the staged files, since further cycles would refuse to stage.
func (w *Watcher) Run(ctx context.Context) error {
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.opts.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()
	if err := w.addDirsRecursive(fsw, root); err != nil {
		return err
	}

	if w.opts.PollInterval > 0 {
		sched, err := w.schedulePoll()
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				slog.Warn("Poll scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fatal := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx, fatal)
	}()

	slog.Info("Watching for changes", logfields.Root(root))
	w.request()

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			slog.Info("Watch stopped")
			return nil
		case err := <-fatal:
			cancel()
			return err
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) schedulePoll() (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.opts.PollInterval),
		gocron.NewTask(w.poll),
		gocron.WithName("bookstage-poll"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create poll job: %w", err)
	}
	return s, nil
}

func (w *Watcher) poll() {
	w.mu.Lock()
	busy := w.busy
	w.mu.Unlock()
	if busy {
		return
	}
	slog.Debug("Poll interval elapsed")
	w.request()
}

// worker runs one cycle per request, never two at once.
func (w *Watcher) worker(ctx context.Context, fatal chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rebuild:
			if ctx.Err() != nil {
				return
			}
			if err := w.cycle(ctx); err != nil {
				fatal <- err
				return
			}
		}
	}
}

func (w *Watcher) cycle(ctx context.Context) error {
	w.mu.Lock()
	w.busy = true
	w.mu.Unlock()

	start := time.Now()
	err := w.build(ctx)

	w.mu.Lock()
	w.busy = false
	w.cycles++
	// The cycle itself moved files; their events arrive late and are not edits.
	w.quietUntil = time.Now().Add(w.opts.Debounce)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	elapsed := logfields.DurationMS(float64(time.Since(start).Milliseconds()))
	switch {
	case err == nil:
		slog.Info("Rebuild complete", elapsed)
	case errors.Is(err, stage.ErrRestoreFailed):
		return err
	case ctx.Err() != nil:
	default:
		slog.Warn("rebuild failed", elapsed, logfields.Error(err))
	}
	return nil
}

// trigger schedules a rebuild once events stop arriving for Debounce.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy || time.Now().Before(w.quietUntil) {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.request)
}

func (w *Watcher) request() {
	select {
	case w.rebuild <- struct{}{}:
	default:
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if w.shouldIgnore(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(fsw, ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.trigger()
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := w.ignore[name]
	return ok
}

// shouldIgnore reports whether an event for path must not trigger a rebuild.
func (w *Watcher) shouldIgnore(path string) bool {
	if rel, err := filepath.Rel(w.opts.Root, path); err == nil && rel != "." {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		for _, dir := range parts[:len(parts)-1] {
			if w.skipDir(dir) {
				return true
			}
		}
		if _, ok := w.ignore[parts[len(parts)-1]]; ok {
			return true
		}
	}
	return shouldIgnoreFile(filepath.Base(path))
}

func shouldIgnoreFile(base string) bool {
	// Ignore hidden files
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Ignore editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	// vim probes directory writability with a file named 4913.
	return base == "4913" || base == "Thumbs.db"
}
