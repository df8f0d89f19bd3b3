// Package stage moves the files a book's SUMMARY.md references into the
// staging directory mdbook reads from, and moves them back afterwards.
//
// A Guard is the unit of work: Acquire stages every manifest entry and
// records an (original, staged) pair for each, Release moves every pair back in
// the order they were recorded. Run wraps both around a callback with defer,
// which is the form callers should use:
//
//	err := stage.Run(ctx, opts, func(ctx context.Context, g *stage.Guard) error {
//		return runner.Run(ctx, mdbook.SubcommandBuild)
//	})
//
// Release runs on every exit path of the callback, including errors and panics.
// A process killed without running deferred functions leaves files staged;
// Recover moves them back using only the manifest.
package stage
