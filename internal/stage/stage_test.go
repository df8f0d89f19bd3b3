package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookstage/internal/manifest"
)

// setupBook creates a book root with src/SUMMARY.md and the given files.
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

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) // #nosec G304 -- test file
	require.NoError(t, err)
	return string(data)
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	_, err := os.Lstat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestAcquireReleaseSingleEntry(t *testing.T) {
	root := setupBook(t, "- [Intro](./intro.md)\n", map[string]string{"intro.md": "X"})

	g, err := Acquire(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	assert.Equal(t, "X", readFile(t, filepath.Join(root, "src", "intro.md")))
	assertMissing(t, filepath.Join(root, "intro.md"))

	require.NoError(t, g.Release())
	assert.Equal(t, "X", readFile(t, filepath.Join(root, "intro.md")))
	assertMissing(t, filepath.Join(root, "src", "intro.md"))
}

func TestAcquireWithoutEntriesIsNoop(t *testing.T) {
	root := setupBook(t, "# Summary\n\n[Home](index.md)\n", map[string]string{"index.md": "home"})

	g, err := Acquire(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Records())
	assert.Equal(t, "home", readFile(t, filepath.Join(root, "index.md")))

	require.NoError(t, g.Release())
	assert.Equal(t, "home", readFile(t, filepath.Join(root, "index.md")))
}

func TestRoundTripNestedEntries(t *testing.T) {
	files := map[string]string{
		"intro.md":             "intro",
		"guide/index.md":       "guide",
		"guide/deep/setup.md":  "setup",
		"reference/options.md": "options",
	}
	summary := "# Summary\n\n" +
		"- [Intro](./intro.md)\n" +
		"- [Guide](./guide/index.md)\n" +
		"  - [Setup](./guide/deep/setup.md)\n" +
		"- [Options](./reference/options.md)\n"
	root := setupBook(t, summary, files)

	g, err := Acquire(context.Background(), Options{Root: root})
	require.NoError(t, err)

	records := g.Records()
	require.Len(t, records, 4)
	assert.Equal(t, Record{
		Original: filepath.Join(root, "intro.md"),
		Staged:   filepath.Join(root, "src", "intro.md"),
	}, records[0])
	assert.Equal(t, filepath.Join(root, "src", "guide", "deep", "setup.md"), records[2].Staged)
	for rel, content := range files {
		assert.Equal(t, content, readFile(t, filepath.Join(root, "src", rel)))
	}

	require.NoError(t, g.Release())
	for rel, content := range files {
		assert.Equal(t, content, readFile(t, filepath.Join(root, rel)))
	}
	// Directories created for staging are gone again.
	assertMissing(t, filepath.Join(root, "src", "guide"))
	assertMissing(t, filepath.Join(root, "src", "reference"))
	assert.FileExists(t, filepath.Join(root, "src", "SUMMARY.md"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	root := setupBook(t, "- [Intro](./intro.md)\n", map[string]string{"intro.md": "X"})

	g, err := Acquire(context.Background(), Options{Root: root})
	require.NoError(t, err)
	require.NoError(t, g.Release())

	// A file appearing at the staged path later must not be moved by a second release.
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "intro.md"), []byte("new"), 0o600))
	require.NoError(t, g.Release())
	assert.Equal(t, "X", readFile(t, filepath.Join(root, "intro.md")))
	assert.Equal(t, "new", readFile(t, filepath.Join(root, "src", "intro.md")))

	var nilGuard *Guard
	assert.NoError(t, nilGuard.Release())
}

func TestAcquireMissingSourceRollsBack(t *testing.T) {
	summary := "- [Intro](./intro.md)\n- [Guide](./guide/index.md)\n- [Missing](./missing.md)\n"
	root := setupBook(t, summary, map[string]string{"intro.md": "intro", "guide/index.md": "guide"})

	g, err := Acquire(context.Background(), Options{Root: root})
	require.ErrorIs(t, err, ErrRelocationFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrRestoreFailed)
	assert.ErrorContains(t, err, "missing.md")
	assert.Nil(t, g)

	assert.Equal(t, "intro", readFile(t, filepath.Join(root, "intro.md")))
	assert.Equal(t, "guide", readFile(t, filepath.Join(root, "guide", "index.md")))
	assertMissing(t, filepath.Join(root, "src", "intro.md"))
	assertMissing(t, filepath.Join(root, "src", "guide"))
}

func TestAcquireRefusesToOverwriteStagedPath(t *testing.T) {
	root := setupBook(t, "- [Intro](./intro.md)\n", map[string]string{
		"intro.md":     "root copy",
		"src/intro.md": "already staged",
	})

	_, err := Acquire(context.Background(), Options{Root: root})
	require.ErrorIs(t, err, ErrRelocationFailed)
	assert.ErrorContains(t, err, "already exists")

	assert.Equal(t, "root copy", readFile(t, filepath.Join(root, "intro.md")))
	assert.Equal(t, "already staged", readFile(t, filepath.Join(root, "src", "intro.md")))
}

func TestAcquireDuplicateEntriesFail(t *testing.T) {
	root := setupBook(t, "- [A](./a.md)\n- [A again](./a.md)\n", map[string]string{"a.md": "a"})

	_, err := Acquire(context.Background(), Options{Root: root})
	require.ErrorIs(t, err, ErrRelocationFailed)
	assert.Equal(t, "a", readFile(t, filepath.Join(root, "a.md")))
	assertMissing(t, filepath.Join(root, "src", "a.md"))
}

func TestAcquireManifestErrors(t *testing.T) {
	t.Run("unreadable", func(t *testing.T) {
		_, err := Acquire(context.Background(), Options{Root: t.TempDir()})
		require.ErrorIs(t, err, manifest.ErrUnreadable)
		require.ErrorIs(t, err, ErrRelocationFailed)
	})

	t.Run("malformed", func(t *testing.T) {
		root := setupBook(t, "- [Intro](./intro.md)\n(./)\n", map[string]string{"intro.md": "X"})
		_, err := Acquire(context.Background(), Options{Root: root})
		require.ErrorIs(t, err, manifest.ErrMalformedEntry)
		require.ErrorIs(t, err, ErrRelocationFailed)
		// Parsing happens before anything moves.
		assert.Equal(t, "X", readFile(t, filepath.Join(root, "intro.md")))
	})

	t.Run("strict paths", func(t *testing.T) {
		root := setupBook(t, "- [Out](./../outside.md)\n", nil)
		_, err := Acquire(context.Background(), Options{Root: root, StrictPaths: true})
		require.ErrorIs(t, err, manifest.ErrUnsafePath)
		require.ErrorIs(t, err, ErrRelocationFailed)
	})
}

func TestAcquireCustomLayout(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "TOC.md"), []byte("- [A](./a.md)\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("a"), 0o600))

	g, err := Acquire(context.Background(), Options{Root: root, ManifestPath: "TOC.md", StagingDir: "book-src"})
	require.NoError(t, err)
	assert.Equal(t, "a", readFile(t, filepath.Join(root, "book-src", "a.md")))

	require.NoError(t, g.Release())
	assert.Equal(t, "a", readFile(t, filepath.Join(root, "a.md")))
	assertMissing(t, filepath.Join(root, "book-src"))
}

func TestAcquireCanceledContext(t *testing.T) {
	root := setupBook(t, "- [A](./a.md)\n", map[string]string{"a.md": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, Options{Root: root})
	require.ErrorIs(t, err, ErrRelocationFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "a", readFile(t, filepath.Join(root, "a.md")))
}

func TestRunReleasesAfterCallbackError(t *testing.T) {
	root := setupBook(t, "- [Intro](./intro.md)\n", map[string]string{"intro.md": "X"})
	errTool := errors.New("mdbook exited with status 101")

	err := Run(context.Background(), Options{Root: root}, func(_ context.Context, g *Guard) error {
		// The staged layout is in place while the callback runs.
		assert.Equal(t, "X", readFile(t, filepath.Join(root, "src", "intro.md")))
		assert.Equal(t, root, g.Root())
		return errTool
	})
	require.ErrorIs(t, err, errTool)
	assert.NotErrorIs(t, err, ErrRestoreFailed)

	assert.Equal(t, "X", readFile(t, filepath.Join(root, "intro.md")))
	assertMissing(t, filepath.Join(root, "src", "intro.md"))
}

func TestRunReleasesOnPanic(t *testing.T) {
	root := setupBook(t, "- [Intro](./intro.md)\n", map[string]string{"intro.md": "X"})

	assert.PanicsWithValue(t, "boom", func() {
		_ = Run(context.Background(), Options{Root: root}, func(context.Context, *Guard) error {
			panic("boom")
		})
	})
	assert.Equal(t, "X", readFile(t, filepath.Join(root, "intro.md")))
}

func TestRunDoesNotCallCallbackWhenAcquireFails(t *testing.T) {
	root := setupBook(t, "- [Missing](./missing.md)\n", nil)
	called := false

	err := Run(context.Background(), Options{Root: root}, func(context.Context, *Guard) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrRelocationFailed)
	assert.False(t, called)
}

func TestAcquireDefaultsToWorkingDirectory(t *testing.T) {
	root := setupBook(t, "- [Intro](./intro.md)\n", map[string]string{"intro.md": "X"})
	t.Chdir(root)

	g, err := Acquire(context.Background(), Options{})
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(g.Root())
	require.NoError(t, err)
	assert.Equal(t, resolved, gotRoot)
	require.NoError(t, g.Release())
}
