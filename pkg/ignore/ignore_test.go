package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"empty matcher", nil, "a.js", false},
		{"dir pattern root", []string{"node_modules/"}, "node_modules/x.js", true},
		{"dir pattern nested", []string{"node_modules/"}, "pkg/node_modules/x/y.js", true},
		{"dir pattern not a file", []string{"node_modules/"}, "node_modules", false},
		{"extension any depth", []string{"*.log"}, "logs/debug.log", true},
		{"extension root", []string{"*.log"}, "debug.log", true},
		{"star does not cross", []string{"src/*.js"}, "src/lib/a.js", false},
		{"double star crosses", []string{"src/**/*.js"}, "src/lib/a.js", true},
		{"anchored root", []string{"/build"}, "build/out.js", true},
		{"anchored not nested", []string{"/build"}, "src/build/out.js", false},
		{"middle slash anchors", []string{"docs/*.md"}, "x/docs/a.md", false},
		{"middle slash matches", []string{"docs/*.md"}, "docs/a.md", true},
		{"leading double star", []string{"**/tmp"}, "tmp/a", true},
		{"dotfile", []string{".env"}, "config/.env", true},
		{"comment skipped", []string{"# *.js"}, "a.js", false},
		{"blank skipped", []string{"", "   "}, "a.js", false},
		{"escaped hash", []string{`\#notes`}, "#notes", true},
		{"os separator", []string{"*.tmp"}, filepath.Join("a", "b.tmp"), true},
		{"dot slash prefix", []string{"/a.js"}, "./a.js", true},
		{"later negation re-includes", []string{"*.log", "!keep.log"}, "keep.log", false},
		{"earlier negation is overridden", []string{"!keep.log", "*.log"}, "keep.log", true},
		{"negation of other file", []string{"*.log", "!keep.log"}, "drop.log", true},
		{"re-ignore after negation", []string{"*.log", "!*.log", "debug.log"}, "debug.log", true},
		{"negation under ignored dir", []string{"vendor/", "!vendor/keep.js"}, "vendor/keep.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			require.NoError(t, m.AddPatterns("test", tt.patterns...))
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestSkipDir(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPatterns("test", "!src/", "node_modules/", "/dist"))

	assert.True(t, m.SkipDir("node_modules"))
	assert.True(t, m.SkipDir("a/node_modules"))
	assert.True(t, m.SkipDir("dist"))
	assert.False(t, m.SkipDir("src"))
	assert.False(t, m.SkipDir("lib"))

	// A dir-only pattern still ignores files beneath the directory.
	assert.True(t, m.Match("node_modules/pkg/index.js"))
}

func TestSkipDirLaterNegation(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPatterns("test", "vendor/", "!vendor/keep.js"))

	assert.False(t, m.SkipDir("vendor"), "a later negation may re-include files beneath")
	assert.True(t, m.Match("vendor/other.js"))
	assert.False(t, m.Match("vendor/keep.js"))

	// A negation that precedes the ignoring pattern is overridden.
	m = New()
	require.NoError(t, m.AddPatterns("test", "!vendor/keep.js", "vendor/"))

	assert.True(t, m.SkipDir("vendor"))
	assert.True(t, m.Match("vendor/keep.js"))
}

func TestAddPatternsInvalid(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPatterns("first", "*.log"))

	err := m.AddPatterns("second", "ok", "[abc")
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Contains(t, err.Error(), "second")

	// The failed source contributed nothing.
	assert.False(t, m.Match("ok"))
	assert.Equal(t, []string{"first"}, m.Sources())
}

func TestAddFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("# deps\nnode_modules/\n\n*.log\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFile(path))
	require.NoError(t, m.AddFile(filepath.Join(dir, ".npmignore")), "missing file is not an error")

	assert.True(t, m.Match("node_modules/x.js"))
	assert.True(t, m.Match("a.log"))
	assert.False(t, m.Match("index.js"))
	assert.Equal(t, []string{"node_modules/", "*.log"}, m.Patterns())
	assert.Equal(t, []string{path}, m.Sources())
}

func TestAddFileUnreadable(t *testing.T) {
	dir := t.TempDir()

	// A directory where a file is expected fails on read.
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.Mkdir(path, 0o755))

	err := New().AddFile(path)
	assert.Error(t, err)
}

func TestSourceOrder(t *testing.T) {
	m := New()
	require.NoError(t, m.Parse(strings.NewReader("*.log\nbuild/\n"), ".gitignore"))
	require.NoError(t, m.Parse(strings.NewReader("!important.log\n"), ".cortexignore"))
	require.NoError(t, m.AddPatterns("cortex.ignore", "dist/", "!build/keep.js"))

	assert.False(t, m.Match("important.log"))
	assert.True(t, m.Match("other.log"))
	assert.True(t, m.Match("dist/a.js"))
	assert.True(t, m.Match("build/out.js"))
	assert.False(t, m.Match("build/keep.js"), "manifest patterns override ignore files")
	assert.Equal(t, []string{".gitignore", ".cortexignore", "cortex.ignore"}, m.Sources())
}

func TestFilter(t *testing.T) {
	m := New()
	require.NoError(t, m.AddPatterns("test", "*.log", "tmp/"))

	got := m.Filter([]string{"a.js", "b.log", "tmp/c.js", "src/d.js"})
	assert.Equal(t, []string{"a.js", "src/d.js"}, got)
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("a.js"))
	assert.False(t, m.SkipDir("a"))
}

func BenchmarkMatch(b *testing.B) {
	m := New()
	_ = m.AddPatterns("bench", "node_modules/", "*.log", "/dist", "coverage/", ".DS_Store")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Match("src/components/button/index.js")
	}
}
