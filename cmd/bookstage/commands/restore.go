package commands

import (
	"errors"
	"fmt"

	foundationerrors "git.home.luguber.info/inful/bookstage/internal/foundation/errors"
	"git.home.luguber.info/inful/bookstage/internal/manifest"
	"git.home.luguber.info/inful/bookstage/internal/stage"
)

// RestoreCmd implements the 'restore' command.
type RestoreCmd struct{}

func (r *RestoreCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	opts, err := stageOptions(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	n, err := stage.Recover(ctx, opts)
	if n > 0 || err == nil {
		_, _ = fmt.Fprintf(g.Stdout, "Restored %d file(s).\n", n)
	}
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, stage.ErrRestoreFailed):
		return foundationerrors.RestoreError(err).WithContext("left_staged", stage.FailedRestores(err)).Build()
	case errors.Is(err, manifest.ErrUnreadable), errors.Is(err, manifest.ErrMalformedEntry), errors.Is(err, manifest.ErrUnsafePath):
		return foundationerrors.ManifestError(err, manifestPath(opts)).Build()
	default:
		return foundationerrors.InternalError(err, "restore failed").Build()
	}
}
