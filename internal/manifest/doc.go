// Package manifest reads the book's table of contents (src/SUMMARY.md) and
// extracts the relative paths the build has to stage.
//
// The extraction is deliberately line based: every line containing the marker
// "(./" contributes exactly one path, taken from just after the first marker up
// to, but excluding, the line's last character. Order follows the file and
// duplicates are kept.
//
// Inspect cross-checks that line based view against a real Markdown parse so
// the check command can point out SUMMARY.md lines the extraction gets wrong.
package manifest
