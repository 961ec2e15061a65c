// Package discovery locates project roots.
//
// A project root is a directory holding cortex.json or package.json.
// FindRoot walks upward from any path inside a project; Discoverer scans
// workspace directories for the projects directly beneath them.
//
// Example usage:
//
//	root, err := discovery.FindRoot("/work/app/src/index.js")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(root) // /work/app
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xmhha/cortex-watch/pkg/manifest"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Discoverer finds project roots under workspace directories.
type Discoverer interface {
	// Discover returns the project roots directly beneath each base
	// directory, plus the base directory itself when it is a project.
	//
	// Returns:
	//   - Absolute project roots, in directory order
	//   - Error if a base directory cannot be read
	Discover() ([]string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	baseDirs []string
	logger   Logger
}

// New creates a new Discoverer instance.
func New(baseDirs []string, logger Logger) Discoverer {
	return &discoverer{
		baseDirs: baseDirs,
		logger:   logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]string, error) {
	var roots []string

	for _, baseDir := range d.baseDirs {
		expandedDir, err := filepath.Abs(expandHome(baseDir))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, baseDir, err)
		}

		info, err := os.Stat(expandedDir)
		if err != nil {
			if os.IsNotExist(err) {
				d.logger.Warn("directory not found, skipping", "path", expandedDir)
				continue
			}
			return nil, fmt.Errorf("failed to stat directory %s: %w", expandedDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, expandedDir)
		}

		found, err := d.scanBaseDirectory(expandedDir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", expandedDir, err)
		}

		roots = append(roots, found...)
	}

	d.logger.Info("discovery complete", "projects", len(roots))
	return roots, nil
}

// scanBaseDirectory returns baseDir if it is a project, followed by every
// non-hidden child directory that is one.
func (d *discoverer) scanBaseDirectory(baseDir string) ([]string, error) {
	var roots []string

	if manifest.Exists(baseDir) {
		roots = append(roots, baseDir)
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || entry.Name() == "node_modules" {
			continue
		}

		projectPath := filepath.Join(baseDir, entry.Name())
		if !manifest.Exists(projectPath) {
			d.logger.Debug("skipping directory without manifest", "path", projectPath)
			continue
		}

		roots = append(roots, projectPath)
	}

	return roots, nil
}

// FindRoot returns the nearest directory at or above path that holds a
// project manifest. path may name a file or a directory, and need not exist
// (a removed file still resolves through its parent directories).
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}

	dir := abs
	if info, statErr := os.Stat(abs); statErr != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		if manifest.Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNoRoot, abs)
		}
		dir = parent
	}
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
