// Package manifest reads project manifests.
//
// A project root holds either cortex.json or package.json; cortex.json wins
// when both exist. Inside package.json, cortex-specific settings live under
// the "cortex" field.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manifest file names in lookup order.
const (
	CortexFile  = "cortex.json"
	PackageFile = "package.json"
)

// IgnoreField is the namespaced path of manifest-declared ignore patterns.
const IgnoreField = "cortex.ignore"

var (
	// ErrNotFound is returned when a root has neither cortex.json nor package.json.
	ErrNotFound = errors.New("both cortex.json and package.json are not found")

	// ErrParse is returned when the manifest is not a JSON object.
	ErrParse = errors.New("error parsing manifest")

	// ErrInvalidIgnore is returned when cortex.ignore is neither a string nor
	// a list of strings.
	ErrInvalidIgnore = errors.New("cortex.ignore must be a string or a list of strings")
)

// Manifest is a decoded project manifest.
type Manifest struct {
	// Path is the manifest file that was read.
	Path string

	// Doc is the raw decoded document.
	Doc map[string]interface{}
}

// FindFile returns the manifest path for root.
func FindFile(root string) (string, error) {
	for _, name := range []string{CortexFile, PackageFile} {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, root)
}

// Exists reports whether root has a manifest.
func Exists(root string) bool {
	_, err := FindFile(root)
	return err == nil
}

// Read locates and decodes the manifest of root.
func Read(root string) (*Manifest, error) {
	path, err := FindFile(root)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is a manifest under a watched root
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrParse, path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w %q: not an object", ErrParse, path)
	}

	return &Manifest{Path: path, Doc: doc}, nil
}

// IsCortex reports whether the manifest was read from cortex.json.
func (m *Manifest) IsCortex() bool {
	return strings.EqualFold(filepath.Base(m.Path), CortexFile)
}

// Lookup resolves a dot-separated path such as "cortex.ignore".
func (m *Manifest) Lookup(namespace string) (interface{}, bool) {
	var cur interface{} = m.Doc
	for _, key := range strings.Split(namespace, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// IgnorePatterns returns the patterns under cortex.ignore. A missing field
// yields an empty list; a single string counts as one pattern.
func (m *Manifest) IgnorePatterns() ([]string, error) {
	raw, ok := m.Lookup(IgnoreField)
	if !ok || raw == nil {
		return []string{}, nil
	}

	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		patterns := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w (in %s)", ErrInvalidIgnore, m.Path)
			}
			patterns = append(patterns, s)
		}
		return patterns, nil
	default:
		return nil, fmt.Errorf("%w (in %s)", ErrInvalidIgnore, m.Path)
	}
}

// Merged returns the cortex view of the manifest. For cortex.json this is
// the document itself. For package.json the "cortex" object is taken as the
// base and top-level fields fill in keys it does not define; the "cortex"
// key itself is dropped. dependencies, asyncDependencies and scripts are
// always present.
func (m *Manifest) Merged() map[string]interface{} {
	if m.IsCortex() {
		return m.Doc
	}

	merged := map[string]interface{}{}
	if cortex, ok := m.Doc["cortex"].(map[string]interface{}); ok {
		for k, v := range cortex {
			merged[k] = v
		}
	}

	for _, key := range []string{"dependencies", "asyncDependencies", "scripts"} {
		if _, ok := merged[key]; !ok {
			merged[key] = map[string]interface{}{}
		}
	}

	for k, v := range m.Doc {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	delete(merged, "cortex")

	return merged
}

// Name returns the project name from the merged view, or "" if it has none.
func (m *Manifest) Name() string {
	name, _ := m.Merged()["name"].(string)
	return name
}
