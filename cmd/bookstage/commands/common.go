package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bookstage/internal/config"
	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/logfields"
	"git.home.luguber.info/inful/bookstage/internal/mdbook"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// Global is shared state bound into every command.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
	// Runner replaces the configured mdbook binary when set.
	Runner mdbook.Runner
}

// NewGlobal returns a Global writing to the process streams.
func NewGlobal() *Global {
	return &Global{Stdout: os.Stdout, Stderr: os.Stderr}
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (optional)" default:"bookstage.yaml" type:"path"`
	Root    string           `help:"Book root; overrides book.root and BOOKSTAGE_ROOT" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	All     AllCmd     `cmd:"" default:"1" help:"Test the book, then render it"`
	Render  RenderCmd  `cmd:"" help:"Build the book from the markdown files"`
	Test    TestCmd    `cmd:"" help:"Test that code samples compile"`
	Check   CheckCmd   `cmd:"" help:"Validate SUMMARY.md and the files it references without moving anything"`
	Restore RestoreCmd `cmd:"" help:"Move back files a killed run left staged"`
	Watch   WatchCmd   `cmd:"" help:"Render, then re-render whenever sources change"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once. It never fails:
// kong would report any error here as a usage error.
func (c *CLI) AfterApply(g *Global) error {
	config.LoadEnvFiles()

	level := slog.LevelInfo
	if v := os.Getenv(config.EnvLogLevel); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	stderr := g.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	g.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig reads the configuration and applies the --root override.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, foundationerrors.ConfigError(fmt.Sprintf("load config: %v", err)).
			WithCause(err).
			WithContext("path", c.Config).
			Build()
	}
	if c.Root != "" {
		cfg.Book.Root = c.Root
	}
	return cfg, nil
}

// stageOptions translates the book section into guard options with an
// absolute root.
func stageOptions(cfg *config.Config) (stage.Options, error) {
	root := cfg.Book.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return stage.Options{}, foundationerrors.InternalError(err, "determine working directory").Build()
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return stage.Options{}, foundationerrors.ConfigError(fmt.Sprintf("invalid book root %q", root)).WithCause(err).Build()
	}
	return stage.Options{
		Root:         abs,
		ManifestPath: cfg.Book.Manifest,
		StagingDir:   cfg.Book.StagingDir,
		StrictPaths:  cfg.Book.StrictPaths,
	}, nil
}

func manifestPath(opts stage.Options) string {
	if filepath.IsAbs(opts.ManifestPath) {
		return opts.ManifestPath
	}
	return filepath.Join(opts.Root, opts.ManifestPath)
}

// signalContext is canceled on SIGINT or SIGTERM so a running mdbook is
// stopped and the staged files are still moved back.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (g *Global) runner(cfg *config.Config, opts stage.Options) mdbook.Runner {
	if g.Runner != nil {
		return g.Runner
	}
	slog.Debug("Using mdbook binary", logfields.Binary(cfg.MDBook.Binary))
	return &mdbook.BinaryRunner{
		Binary:    cfg.MDBook.Binary,
		Dir:       opts.Root,
		ExtraArgs: cfg.MDBook.Args,
		Env:       cfg.MDBook.EnvList(),
		Stdout:    g.Stdout,
		Stderr:    g.Stderr,
	}
}
