package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Marker introduces an embedded relative link on a manifest line.
const Marker = "(./"

var (
	// ErrUnreadable indicates the manifest file is missing or cannot be read.
	ErrUnreadable = errors.New("manifest unreadable")
	// ErrMalformedEntry indicates a marker line with nothing between the marker
	// and the closing character.
	ErrMalformedEntry = errors.New("malformed manifest entry")
	// ErrUnsafePath indicates an entry rejected by the strict path policy.
	ErrUnsafePath = errors.New("unsafe manifest path")
)

// Entry is one path extracted from the manifest.
type Entry struct {
	Path string
	Line int // 1-based
}

// Manifest is the ordered list of entries found in a manifest file.
type Manifest struct {
	Source  string
	Entries []Entry
}

// Paths returns the entry paths in manifest order.
func (m *Manifest) Paths() []string {
	if m == nil {
		return nil
	}
	paths := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Parse extracts manifest entries from content.
func Parse(content string) (*Manifest, error) {
	m := &Manifest{}
	for i, line := range splitLines(content) {
		idx := strings.Index(line, Marker)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(Marker):]
		_, size := utf8.DecodeLastRuneInString(rest)
		if len(rest)-size <= 0 {
			return nil, fmt.Errorf("%w: line %d: %q has no path before the closing delimiter", ErrMalformedEntry, i+1, line)
		}
		m.Entries = append(m.Entries, Entry{Path: rest[:len(rest)-size], Line: i + 1})
	}
	return m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- manifest path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Source = path
	return m, nil
}

// CheckPaths applies the path policy to every entry. Without strict nothing is
// rejected; with strict, empty and absolute paths and paths that climb out of
// the book root with ".." are refused.
func CheckPaths(m *Manifest, strict bool) error {
	if !strict || m == nil {
		return nil
	}
	for _, e := range m.Entries {
		if reason := unsafeReason(e.Path); reason != "" {
			return fmt.Errorf("%w: line %d: %q %s", ErrUnsafePath, e.Line, e.Path, reason)
		}
	}
	return nil
}

func unsafeReason(p string) string {
	switch {
	case strings.TrimSpace(p) == "":
		return "is empty"
	case filepath.IsAbs(p) || strings.HasPrefix(p, "/"):
		return "is absolute"
	}
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "leaves the book root"
		}
	}
	return ""
}

// splitLines splits on '\n' and drops a trailing '\r' from every line. A
// terminating newline does not produce an extra empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
