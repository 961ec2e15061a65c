package watchset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/0xmhha/cortex-watch/pkg/ignore"
	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/manifest"
)

// resolver implements the Resolver interface.
type resolver struct {
	ignoreFiles []string
	logger      logger.Logger
}

// New creates a new Resolver.
func New(cfg Config, log logger.Logger) Resolver {
	files := cfg.IgnoreFiles
	if files == nil {
		files = IgnoreFiles
	}

	return &resolver{
		ignoreFiles: files,
		logger:      log,
	}
}

// Resolve implements Resolver.Resolve.
func (r *resolver) Resolve(ctx context.Context, root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &FilesystemError{Root: root, Err: err}
	}
	root = abs

	rules, err := r.loadRules(root)
	if err != nil {
		return nil, err
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if rules.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isFile(path, d) {
			return nil
		}

		if rules.Match(rel) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}

		var pathErr *fs.PathError
		if errors.As(walkErr, &pathErr) {
			return nil, &FilesystemError{Root: root, Path: pathErr.Path, Err: walkErr}
		}
		return nil, &FilesystemError{Root: root, Err: walkErr}
	}

	sort.Strings(files)

	r.logger.Debug("resolved watch set",
		"root", root,
		"files", len(files),
		"sources", rules.Sources())

	return files, nil
}

// loadRules loads the ignore rules of root: the ignore files in layering
// order, then the manifest's cortex.ignore patterns, which therefore override
// them.
func (r *resolver) loadRules(root string) (*ignore.Matcher, error) {
	m, err := manifest.Read(root)
	if err != nil {
		return nil, &ManifestReadError{Root: root, Err: err}
	}

	patterns, err := m.IgnorePatterns()
	if err != nil {
		return nil, &ManifestReadError{Root: root, Err: err}
	}

	rules := ignore.New()
	for _, name := range r.ignoreFiles {
		path := filepath.Join(root, name)
		if err := rules.AddFile(path); err != nil {
			return nil, &FilesystemError{Root: root, Path: path, Err: err}
		}
	}

	if err := rules.AddPatterns(manifest.IgnoreField, patterns...); err != nil {
		return nil, &ManifestReadError{Root: root, Err: fmt.Errorf("%s: %w", m.Path, err)}
	}

	r.logger.Debug("loaded ignore rules",
		"root", root,
		"project", m.Name(),
		"manifest", m.Path,
		"patterns", len(patterns))

	return rules, nil
}

// isFile reports whether the entry is a regular file, following symlinks.
// Symlinked directories are not descended into.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
