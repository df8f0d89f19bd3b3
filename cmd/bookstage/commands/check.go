package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/manifest"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct{}

// Entry states reported by check.
const (
	stateOK        = "ok"
	stateMissing   = "missing"
	stateStaged    = "staged"
	stateConflict  = "conflict"
	stateUnsafe    = "unsafe"
	stateDuplicate = "duplicate"
)

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	opts, err := stageOptions(cfg)
	if err != nil {
		return err
	}
	return runCheck(g, opts)
}

func runCheck(g *Global, opts stage.Options) error {
	path := manifestPath(opts)
	content, err := os.ReadFile(path) // #nosec G304 -- manifest path from config
	if err != nil {
		return foundationerrors.ManifestError(fmt.Errorf("%w: %w", manifest.ErrUnreadable, err), path).Build()
	}

	findings, err := manifest.Inspect(string(content))
	if err != nil {
		return foundationerrors.InternalError(err, "inspect manifest").Build()
	}
	for _, f := range findings {
		_, _ = fmt.Fprintf(g.Stdout, "warning: %s\n", f)
	}

	m, err := manifest.Parse(string(content))
	if err != nil {
		return foundationerrors.ManifestError(fmt.Errorf("%s: %w", path, err), path).Build()
	}

	_, _ = fmt.Fprintf(g.Stdout, "Manifest %s: %d entries\n", path, m.Len())
	tw := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	problems := 0
	seen := make(map[string]int, m.Len())
	for _, e := range m.Entries {
		state, detail := entryState(opts, e, seen)
		if state != stateOK {
			problems++
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", state, e.Path, detail)
		seen[e.Path] = e.Line
	}
	_ = tw.Flush()

	if problems > 0 {
		return foundationerrors.NewError(foundationerrors.CategoryManifest,
			fmt.Sprintf("%d problem(s) found in %s", problems, path)).
			WithContext("problems", problems).
			Build()
	}
	_, _ = fmt.Fprintln(g.Stdout, "All entries can be staged.")
	return nil
}

func entryState(opts stage.Options, e manifest.Entry, seen map[string]int) (string, string) {
	if line, dup := seen[e.Path]; dup {
		return stateDuplicate, fmt.Sprintf("line %d repeats line %d", e.Line, line)
	}
	note := ""
	single := &manifest.Manifest{Entries: []manifest.Entry{e}}
	if err := manifest.CheckPaths(single, true); err != nil {
		if opts.StrictPaths {
			return stateUnsafe, err.Error()
		}
		note = "unsafe path allowed because strict_paths is off"
	}

	original := present(filepath.Join(opts.Root, e.Path))
	staged := present(filepath.Join(opts.Root, opts.StagingDir, e.Path))
	switch {
	case original && staged:
		return stateConflict, "exists in both places; staging would refuse"
	case staged:
		return stateStaged, "left staged by an earlier run; run 'bookstage restore'"
	case !original:
		return stateMissing, fmt.Sprintf("line %d: source file not found", e.Line)
	}
	return stateOK, note
}

func present(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
