package stage

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/observability"
)

// Recover moves back files a previous run left staged, for example after the
// process was killed before its guard could be released. A manifest entry is
// restored only when its original path is absent and its staged path exists;
// everything else is left untouched. It returns how many files were moved.
func Recover(ctx context.Context, opts Options) (int, error) {
	opts, m, err := opts.loadManifest()
	if err != nil {
		return 0, err
	}

	ctx = observability.WithStage(ctx, "recover")
	g := &Guard{root: opts.Root, fs: opts.fs}
	seen := make(map[string]bool, m.Len())
	var pending []Record
	for _, p := range m.Paths() {
		if seen[p] {
			continue
		}
		seen[p] = true

		r := Record{Original: opts.originalPath(p), Staged: opts.stagedPath(p)}
		present, err := exists(g.fs, r.Original)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrRestoreFailed, p, err)
		}
		staged, err := exists(g.fs, r.Staged)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrRestoreFailed, p, err)
		}
		if present || !staged {
			continue
		}
		pending = append(pending, r)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	restoreErr := g.restoreAll(pending)
	restored := len(pending) - FailedRestores(restoreErr)
	observability.InfoContext(ctx, "Recovered staged files", logfields.Root(opts.Root), logfields.Count(restored))
	return restored, restoreErr
}
