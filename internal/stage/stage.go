package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/manifest"
	"git.home.luguber.info/inful/bookstage/internal/observability"
)

const (
	// DefaultManifestPath is the manifest location relative to the root.
	DefaultManifestPath = "src/SUMMARY.md"
	// DefaultStagingDir is the directory, relative to the root, files are staged into.
	DefaultStagingDir = "src"
)

// Options configures a Guard.
type Options struct {
	// Root is the book root. Empty means the current working directory,
	// captured once when the guard is acquired.
	Root string
	// ManifestPath is the manifest location, relative to Root unless absolute.
	ManifestPath string
	// StagingDir is the directory relative to Root that entries are moved into.
	StagingDir string
	// StrictPaths rejects absolute and root-escaping manifest entries.
	StrictPaths bool

	fs fileSystem
}

func (o Options) withDefaults() (Options, error) {
	if o.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return o, fmt.Errorf("determine working directory: %w", err)
		}
		o.Root = wd
	}
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return o, fmt.Errorf("resolve root %s: %w", o.Root, err)
	}
	o.Root = root
	if o.ManifestPath == "" {
		o.ManifestPath = DefaultManifestPath
	}
	if !filepath.IsAbs(o.ManifestPath) {
		o.ManifestPath = filepath.Join(o.Root, o.ManifestPath)
	}
	if o.StagingDir == "" {
		o.StagingDir = DefaultStagingDir
	}
	if o.fs == nil {
		o.fs = osFS{}
	}
	return o, nil
}

// loadManifest resolves defaults and reads the manifest the options point at.
func (o Options) loadManifest() (Options, *manifest.Manifest, error) {
	o, err := o.withDefaults()
	if err != nil {
		return o, nil, err
	}
	m, err := manifest.Load(o.ManifestPath)
	if err != nil {
		return o, nil, err
	}
	if err := manifest.CheckPaths(m, o.StrictPaths); err != nil {
		return o, nil, err
	}
	return o, m, nil
}

func (o Options) originalPath(p string) string {
	return filepath.Join(o.Root, p)
}

func (o Options) stagedPath(p string) string {
	return filepath.Join(o.Root, o.StagingDir, p)
}

// Acquire loads the manifest and stages every entry. If any entry fails,
// the entries already staged by this call are moved back before the error is
// returned, so a failed Acquire leaves no file moved unless that rollback
// itself fails (reported as ErrRestoreFailed alongside ErrRelocationFailed).
//
// Every failure matches ErrRelocationFailed. Manifest problems also match
// their manifest sentinel (manifest.ErrUnreadable, manifest.ErrMalformedEntry,
// manifest.ErrUnsafePath).
func Acquire(ctx context.Context, opts Options) (*Guard, error) {
	opts, m, err := opts.loadManifest()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRelocationFailed, err)
	}

	ctx = observability.WithStage(ctx, "relocate")
	g := &Guard{root: opts.Root, fs: opts.fs}
	for _, p := range m.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, g.abort(p, err)
		}

		original := opts.originalPath(p)
		staged := opts.stagedPath(p)

		taken, err := exists(g.fs, staged)
		if err != nil {
			return nil, g.abort(p, err)
		}
		if taken {
			return nil, g.abort(p, fmt.Errorf("%s already exists", staged))
		}
		if err := g.ensureDir(filepath.Dir(staged)); err != nil {
			return nil, g.abort(p, err)
		}
		if err := move(g.fs, original, staged); err != nil {
			return nil, g.abort(p, err)
		}

		g.records = append(g.records, Record{Original: original, Staged: staged})
		observability.DebugContext(ctx, "Staged file", logfields.Original(original), logfields.Staged(staged))
	}

	observability.InfoContext(ctx, "Staged book sources",
		logfields.Root(opts.Root),
		logfields.Manifest(opts.ManifestPath),
		logfields.Count(len(g.records)))
	return g, nil
}

// abort rolls back what this acquire has staged so far and builds the
// relocation error for entry p.
func (g *Guard) abort(p string, cause error) error {
	err := fmt.Errorf("%w: %s: %w", ErrRelocationFailed, p, cause)
	slog.Error("Staging failed, rolling back", logfields.Path(p), logfields.Count(len(g.records)), logfields.Error(cause))
	if rbErr := g.rollback(); rbErr != nil {
		return fmt.Errorf("%w; rollback: %w", err, rbErr)
	}
	return err
}

// Run acquires a guard, calls fn with it and releases the guard on every
// exit path of fn. The returned error joins fn's error with any restore error.
func Run(ctx context.Context, opts Options, fn func(ctx context.Context, g *Guard) error) (err error) {
	g, err := Acquire(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := g.Release(); relErr != nil {
			if err != nil {
				err = fmt.Errorf("%w; %w", err, relErr)
				return
			}
			err = relErr
		}
	}()
	return fn(ctx, g)
}
