package watchset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/manifest"
)

// mkTree creates files under root. Paths are slash separated.
func mkTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func abs(root string, rels ...string) []string {
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	return out
}

func TestResolveNoIgnores(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json":  `{"name":"app"}`,
		".env":          "SECRET=1",
		".hidden/a.txt": "a",
		"src/index.js":  "x",
		"src/lib/b.js":  "y",
	})

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root,
		".env",
		".hidden/a.txt",
		"package.json",
		"src/index.js",
		"src/lib/b.js",
	), files)
}

func TestResolveGitignoreDirectory(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json":          `{"name":"app"}`,
		".gitignore":            "node_modules/\n",
		"node_modules/x.js":     "x",
		"node_modules/y/z.js":   "z",
		"src/node_modules/q.js": "q",
		"src/index.js":          "i",
	})

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.NotContains(t, files, filepath.Join(root, "node_modules", "x.js"))
	assert.Equal(t, abs(root, ".gitignore", "package.json", "src/index.js"), files)
}

func TestResolveLayeredSources(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"cortex.json":       `{"name":"app","cortex":{"ignore":["dist/","*.map","!coverage/keep.txt"]}}`,
		".gitignore":        "*.log\n",
		".npmignore":        "coverage/\n",
		".cortexignore":     "!keep.log\n",
		"keep.log":          "k",
		"drop.log":          "d",
		"coverage/a":        "a",
		"coverage/keep.txt": "k",
		"dist/app.js":       "d",
		"src/app.js":        "s",
		"src/app.js.map":    "m",
	})

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root,
		".cortexignore",
		".gitignore",
		".npmignore",
		"cortex.json",
		"coverage/keep.txt",
		"keep.log",
		"src/app.js",
	), files)
}

func TestResolveLaterNegationReincludes(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json": `{}`,
		".gitignore":   "*.log\n!keep.log\n",
		"keep.log":     "k",
		"drop.log":     "d",
	})

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root, ".gitignore", "keep.log", "package.json"), files)
}

func TestResolveNegationUnderIgnoredDirectory(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json":         `{}`,
		".gitignore":           "vendor/\n!vendor/keep.js\n",
		"vendor/keep.js":       "k",
		"vendor/other.js":      "o",
		"vendor/deep/other.js": "o",
	})

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root, ".gitignore", "package.json", "vendor/keep.js"), files)
}

func TestResolveNegationBeforeIgnoredDirectory(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json":   `{}`,
		".gitignore":     "!vendor/keep.js\nvendor/\n",
		"vendor/keep.js": "k",
	})

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root, ".gitignore", "package.json"), files)
}

// Every file either appears in the watch set or is matched by a rule.
func TestResolveRoundTrip(t *testing.T) {
	root := t.TempDir()
	tree := map[string]string{
		"package.json":      `{"cortex":{"ignore":"*.tmp"}}`,
		".gitignore":        "build/\n",
		"a.js":              "a",
		"a.tmp":             "t",
		"build/out.js":      "o",
		"lib/build/keep.js": "k",
		"lib/c.tmp":         "t",
	}
	mkTree(t, root, tree)

	r := New(Config{}, logger.Noop()).(*resolver)
	files, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)

	rules, err := r.loadRules(root)
	require.NoError(t, err)

	watched := make(map[string]bool)
	for _, f := range files {
		watched[f] = true
	}

	for rel := range tree {
		path := filepath.Join(root, filepath.FromSlash(rel))
		ignored := rules.Match(rel)
		assert.Equal(t, !ignored, watched[path], "file %s ignored=%v", rel, ignored)
	}
}

func TestResolveDeterministic(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json": `{}`,
		"z.js":         "z",
		"a/b/c.js":     "c",
		"m.js":         "m",
	})

	r := New(Config{}, logger.Noop())
	first, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveNotCached(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"package.json": `{}`})

	r := New(Config{}, logger.Noop())
	before, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)

	mkTree(t, root, map[string]string{"new.js": "n"})

	after, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
}

func TestResolveManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr error
	}{
		{"missing manifest", map[string]string{"a.js": "a"}, manifest.ErrNotFound},
		{"unparsable manifest", map[string]string{"package.json": `{`}, manifest.ErrParse},
		{"invalid ignore field", map[string]string{"package.json": `{"cortex":{"ignore":1}}`}, manifest.ErrInvalidIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkTree(t, root, tt.files)

			_, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)

			var mErr *ManifestReadError
			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, root, mErr.Root)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolveUnreadableIgnoreFile(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"package.json": `{}`})
	require.NoError(t, os.Mkdir(filepath.Join(root, ".npmignore"), 0o755))

	_, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)

	var fsErr *FilesystemError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, filepath.Join(root, ".npmignore"), fsErr.Path)
}

func TestResolveSymlinkedFile(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json": `{}`,
		"real/a.js":    "a",
	})

	if err := os.Symlink(filepath.Join(root, "real", "a.js"), filepath.Join(root, "link.js")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := New(Config{}, logger.Noop()).Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root, "link.js", "package.json", "real/a.js"), files)
}

func TestResolveCancelled(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"package.json": `{}`, "a.js": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}, logger.Noop()).Resolve(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveCustomIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"package.json": `{}`,
		".gitignore":   "*.js\n",
		".watchignore": "*.css\n",
		"a.js":         "a",
		"b.css":        "b",
	})

	files, err := New(Config{IgnoreFiles: []string{".watchignore"}}, logger.Noop()).
		Resolve(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, abs(root, ".gitignore", ".watchignore", "a.js", "package.json"), files)
}
