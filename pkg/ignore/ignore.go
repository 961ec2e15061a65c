// Package ignore matches project-relative paths against layered ignore
// patterns.
//
// Patterns follow the ignore-file conventions shared by .gitignore and
// .npmignore:
//
//	# comment        skipped, as are blank lines
//	!pattern         un-ignores what pattern matches
//	/pattern         anchored at the root
//	dir/pattern      a slash in the middle also anchors
//	pattern/         matches a directory and everything beneath it
//	*.log            unanchored patterns match at any depth
//	**               crosses directory separators; * does not
//
// Sources are concatenated in the order they are added and the last pattern
// that matches a path decides whether it is ignored, so a later !pattern
// re-includes what an earlier line or source excluded.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidPattern is returned for patterns that do not compile.
var ErrInvalidPattern = errors.New("invalid ignore pattern")

// Compiled globs are shared between matchers; a pattern's meaning never
// depends on where it was loaded from.
var globCache, _ = lru.New[string, glob.Glob](1024)

// Pattern is one compiled glob derived from an ignore line.
type Pattern struct {
	source  string
	line    string
	match   glob.Glob
	negate  bool
	dirOnly bool
}

func (p Pattern) String() string {
	return p.line
}

// Matcher holds an ordered list of patterns. It is safe for concurrent
// Match calls once built.
type Matcher struct {
	patterns []Pattern
	sources  []string
}

// New returns an empty matcher that ignores nothing.
func New() *Matcher {
	return &Matcher{}
}

// AddFile appends the patterns of an ignore file. A missing file contributes
// nothing and is not an error.
func (m *Matcher) AddFile(path string) error {
	fd, err := os.Open(path) //nolint:gosec // path is an ignore file under a watched root
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer fd.Close()

	return m.Parse(fd, path)
}

// Parse appends the patterns read from r, one per line. source names the
// origin in errors and in Sources.
func (m *Matcher) Parse(r io.Reader, source string) error {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	return m.AddPatterns(source, lines...)
}

// AddPatterns appends inline patterns, such as those declared in a manifest.
// Nothing is added if any pattern is invalid.
func (m *Matcher) AddPatterns(source string, lines ...string) error {
	var added []Pattern

	for _, line := range lines {
		patterns, err := compileLine(source, line)
		if err != nil {
			return err
		}
		added = append(added, patterns...)
	}

	m.patterns = append(m.patterns, added...)
	m.sources = append(m.sources, source)
	return nil
}

// Match reports whether the file at rel (slash or OS separated, relative to
// the root) is ignored.
func (m *Matcher) Match(rel string) bool {
	return m.match(rel, false)
}

// SkipDir reports whether the directory at rel and everything beneath it are
// ignored, so a walk need not visit its contents. A directory is not skipped
// when a negation follows the pattern that ignores it, since that negation
// may re-include a path beneath it.
func (m *Matcher) SkipDir(rel string) bool {
	i := m.decide(rel, true)
	if i < 0 || m.patterns[i].negate {
		return false
	}
	for _, p := range m.patterns[i+1:] {
		if p.negate {
			return false
		}
	}
	return true
}

func (m *Matcher) match(rel string, isDir bool) bool {
	i := m.decide(rel, isDir)
	return i >= 0 && !m.patterns[i].negate
}

// decide returns the index of the last pattern matching rel, or -1.
func (m *Matcher) decide(rel string, isDir bool) int {
	if m == nil {
		return -1
	}

	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for i := len(m.patterns) - 1; i >= 0; i-- {
		p := m.patterns[i]
		if p.dirOnly && !isDir {
			continue
		}
		if p.match.Match(rel) {
			return i
		}
	}

	return -1
}

// Filter returns the entries of rels that are not ignored, in order.
func (m *Matcher) Filter(rels []string) []string {
	kept := make([]string, 0, len(rels))
	for _, rel := range rels {
		if !m.Match(rel) {
			kept = append(kept, rel)
		}
	}
	return kept
}

// Patterns returns the source lines of every compiled pattern.
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.patterns))
	seen := make(map[string]bool)
	for _, p := range m.patterns {
		key := p.source + "\x00" + p.line
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p.line)
	}
	return out
}

// Sources returns the names of the pattern sources in the order they were
// added.
func (m *Matcher) Sources() []string {
	return append([]string(nil), m.sources...)
}

// compileLine expands one ignore line into the globs that implement it.
func compileLine(source, raw string) ([]Pattern, error) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	base := Pattern{source: source, line: line}

	if strings.HasPrefix(line, "!") {
		base.negate = true
		line = line[1:]
	}
	if strings.HasPrefix(line, `\`) {
		// "\#x" and "\!x" name literal files.
		line = line[1:]
	}

	line = filepath.ToSlash(line)

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimRight(line, "/")
	if line == "" {
		return nil, nil
	}

	var prefixes []string
	switch {
	case strings.HasPrefix(line, "/"):
		prefixes = []string{strings.TrimLeft(line, "/")}
	case strings.HasPrefix(line, "**/"):
		prefixes = []string{line, line[3:]}
	case strings.Contains(line, "/"):
		prefixes = []string{line}
	default:
		prefixes = []string{line, "**/" + line}
	}

	var out []Pattern
	add := func(expr string, dirOnly bool) error {
		g, err := compile(expr)
		if err != nil {
			return fmt.Errorf("%w %q in %s: %v", ErrInvalidPattern, raw, source, err)
		}
		p := base
		p.match = g
		p.dirOnly = dirOnly
		out = append(out, p)
		return nil
	}

	for _, prefix := range prefixes {
		if err := add(prefix, dirOnly); err != nil {
			return nil, err
		}
		if err := add(prefix+"/**", false); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func compile(expr string) (glob.Glob, error) {
	if g, ok := globCache.Get(expr); ok {
		return g, nil
	}

	g, err := glob.Compile(expr, '/')
	if err != nil {
		return nil, err
	}

	globCache.Add(expr, g)
	return g, nil
}
