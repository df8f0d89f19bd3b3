package manifest

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/bookstage/internal/markdown"
)

// FindingKind classifies an Inspect finding.
type FindingKind string

const (
	// FindingMalformed is a marker line Parse would reject.
	FindingMalformed FindingKind = "malformed"
	// FindingNotALink is an extracted path that Markdown does not see as a
	// "./" link destination (code blocks, link titles, trailing text).
	FindingNotALink FindingKind = "not_a_link"
	// FindingUnstaged is a "./" link destination that no manifest line yields,
	// typically a second link on one line or a reference definition.
	FindingUnstaged FindingKind = "unstaged_link"
)

// Finding is one discrepancy between line extraction and Markdown links.
type Finding struct {
	Kind    FindingKind
	Line    int // 0 when the finding has no single source line
	Path    string
	Message string
}

func (f Finding) String() string {
	if f.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", f.Line, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Inspect compares what Parse extracts from content with the "./" links a
// Markdown parser finds in it. Entries are extracted leniently: a malformed
// marker line becomes a finding instead of aborting.
func Inspect(content string) ([]Finding, error) {
	var findings []Finding
	var entries []Entry
	for i, line := range splitLines(content) {
		m, err := Parse(line)
		if err != nil {
			findings = append(findings, Finding{
				Kind:    FindingMalformed,
				Line:    i + 1,
				Message: fmt.Sprintf("%q has no path after %q", line, Marker),
			})
			continue
		}
		for _, e := range m.Entries {
			entries = append(entries, Entry{Path: e.Path, Line: i + 1})
		}
	}

	links, err := markdown.ExtractLinks([]byte(content), markdown.Options{})
	if err != nil {
		return nil, fmt.Errorf("parse markdown: %w", err)
	}

	destinations := make(map[string]bool)
	for _, l := range links {
		if l.IsRelativeDot() {
			destinations[strings.TrimPrefix(l.Destination, "./")] = true
		}
	}

	extracted := make(map[string]bool, len(entries))
	for _, e := range entries {
		extracted[e.Path] = true
		if !destinations[e.Path] {
			findings = append(findings, Finding{
				Kind:    FindingNotALink,
				Line:    e.Line,
				Path:    e.Path,
				Message: fmt.Sprintf("extracted path %q is not a ./ link destination", e.Path),
			})
		}
	}

	seen := make(map[string]bool)
	for _, l := range links {
		if !l.IsRelativeDot() {
			continue
		}
		p := strings.TrimPrefix(l.Destination, "./")
		if p == "" || extracted[p] || seen[p] {
			continue
		}
		seen[p] = true
		findings = append(findings, Finding{
			Kind:    FindingUnstaged,
			Path:    p,
			Message: fmt.Sprintf("link %q is not on a line of its own and will not be staged", l.Destination),
		})
	}

	return findings, nil
}
