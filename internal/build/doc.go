// Package build runs mdbook subcommands against a staged book.
//
// A run generates an id, stages the manifest entries with stage.Run, executes
// the plan's subcommands in order and always releases the staged files.
// Failures come back as classified errors; a restore failure takes precedence
// over whatever else went wrong, since it leaves the source tree modified.
package build
