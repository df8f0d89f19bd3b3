package stage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/bookstage/internal/logfields"
)

// Record pairs a staged file with the path it came from.
type Record struct {
	Original string
	Staged   string
}

// Guard owns the records of one staging transaction.
type Guard struct {
	mu          sync.Mutex
	root        string
	fs          fileSystem
	records     []Record
	createdDirs []string // creation order, parents first
	released    bool
}

// Root returns the absolute book root the guard staged from.
func (g *Guard) Root() string {
	return g.root
}

// Len returns the number of staged files.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}

// Records returns a copy of the staged records in staging order.
func (g *Guard) Records() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// Release moves every staged file back to its original path, in staging
// order. A failing record does not stop the others; all failures are returned
// as a *RestoreError. Release is idempotent: only the first call moves files.
func (g *Guard) Release() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil
	}
	g.released = true

	err := g.restoreAll(g.records)
	g.removeCreatedDirs()
	if err != nil {
		return err
	}
	slog.Info("Restored book sources", logfields.Root(g.root), logfields.Count(len(g.records)))
	return nil
}

// rollback undoes a partial acquire in reverse order.
func (g *Guard) rollback() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = true

	reversed := make([]Record, len(g.records))
	for i, r := range g.records {
		reversed[len(g.records)-1-i] = r
	}
	err := g.restoreAll(reversed)
	g.removeCreatedDirs()
	return err
}

func (g *Guard) restoreAll(records []Record) error {
	var failures []RecordError
	for _, r := range records {
		if err := g.restore(r); err != nil {
			slog.Error("Failed to restore file",
				logfields.Original(r.Original),
				logfields.Staged(r.Staged),
				logfields.Error(err))
			failures = append(failures, RecordError{Record: r, Err: err})
			continue
		}
		slog.Debug("Restored file", logfields.Original(r.Original), logfields.Staged(r.Staged))
	}
	if len(failures) > 0 {
		return &RestoreError{Failures: failures}
	}
	return nil
}

func (g *Guard) restore(r Record) error {
	if err := g.fs.MkdirAll(filepath.Dir(r.Original), 0o750); err != nil {
		return fmt.Errorf("recreate parent directory: %w", err)
	}
	return move(g.fs, r.Staged, r.Original)
}

// ensureDir creates dir and its missing parents, remembering which ones it
// created so they can be removed again.
func (g *Guard) ensureDir(dir string) error {
	var missing []string
	for d := dir; ; {
		ok, err := exists(g.fs, d)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		missing = append(missing, d)
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	if len(missing) == 0 {
		return nil
	}
	if err := g.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		g.createdDirs = append(g.createdDirs, missing[i])
	}
	return nil
}

// removeCreatedDirs removes directories created while staging, deepest first.
// Directories that are no longer empty are left alone.
func (g *Guard) removeCreatedDirs() {
	for i := len(g.createdDirs) - 1; i >= 0; i-- {
		if err := g.fs.Remove(g.createdDirs[i]); err != nil {
			slog.Debug("Keeping staging directory", logfields.Path(g.createdDirs[i]), logfields.Error(err))
		}
	}
	g.createdDirs = nil
}
