package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecthomas/kong"

	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/version"
)

// exitRequest carries kong's exit code (after --help or --version) back to
// Execute instead of terminating the process.
type exitRequest int

// Execute parses args, runs the selected command and returns the process
// exit code. An unrecognised command prints the usage text to stdout and
// succeeds.
func Execute(args []string, g *Global) (code int) {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("bookstage"),
		kong.Description("Stage the files SUMMARY.md references into src/, run mdbook, and move them back."),
		kong.Vars{"version": version.String()},
		kong.Writers(g.Stdout, g.Stderr),
		kong.Bind(g),
		kong.Exit(func(c int) { panic(exitRequest(c)) }),
	)
	if err != nil {
		_, _ = fmt.Fprintln(g.Stderr, err)
		return 10
	}

	defer func() {
		if r := recover(); r != nil {
			req, ok := r.(exitRequest)
			if !ok {
				panic(r)
			}
			code = int(req)
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		var pe *kong.ParseError
		if errors.As(err, &pe) && pe.Context != nil {
			_ = pe.Context.PrintUsage(false)
			return 0
		}
		_, _ = fmt.Fprintln(g.Stderr, err)
		return 2
	}

	if err := kctx.Run(cli); err != nil {
		logger := g.Logger
		if logger == nil {
			logger = slog.Default()
		}
		return foundationerrors.NewCLIErrorAdapter(cli.Verbose, logger).WithOutput(g.Stderr).Report(err)
	}
	return 0
}
