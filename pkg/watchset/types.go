// Package watchset expands a project root into the files that should be
// registered with the filesystem watcher.
//
// Every file under the root is a candidate, dotfiles included. Candidates are
// filtered through the root's ignore files and the manifest's cortex.ignore
// patterns. Nothing is cached: each call reflects the filesystem at call time.
//
// Example usage:
//
//	r := watchset.New(watchset.Config{}, logger.Default())
//	files, err := r.Resolve(ctx, "/work/app")
//	if err != nil {
//	    var mErr *watchset.ManifestReadError
//	    if errors.As(err, &mErr) {
//	        // no cortex.json or package.json
//	    }
//	}
package watchset

import "context"

// IgnoreFiles are the ignore files read at each root. Their patterns are
// layered in this order, so the project-specific file overrides the others.
var IgnoreFiles = []string{".gitignore", ".npmignore", ".cortexignore"}

// Resolver turns a project root into its watch set.
type Resolver interface {
	// Resolve returns the absolute paths of every non-ignored file under
	// root, sorted.
	//
	// Returns:
	//   - *ManifestReadError if the manifest is missing or unparsable
	//   - *FilesystemError if the root cannot be walked or an ignore file
	//     cannot be read
	Resolve(ctx context.Context, root string) ([]string, error)
}

// Config contains resolver configuration.
type Config struct {
	// IgnoreFiles overrides the ignore file names read at each root.
	// Default: IgnoreFiles.
	IgnoreFiles []string
}
