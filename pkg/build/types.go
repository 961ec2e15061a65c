// Package build runs the external build of a project.
//
// A build is requested the way the cortex CLI would receive it:
//
//	build --cwd <path>
//
// Parse resolves <path> (any file or directory inside a project) to the
// project root. Run executes the configured command for that root and
// reports completion through a callback.
//
// Example usage:
//
//	op, err := build.New(build.Config{Command: "cortex build --cwd %ROOT%"}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := op.Parse([]string{"build", "--cwd", "/work/app/src/index.js"})
//	if err != nil {
//	    log.Fatal(err) // no project root above the path
//	}
//
//	_ = op.Run(ctx, opts, func(err error) {
//	    fmt.Println("build finished:", err)
//	})
package build

import (
	"context"
	"time"
)

// Placeholders substituted in the command words.
const (
	PlaceholderRoot = "%ROOT%"
	PlaceholderCwd  = "%CWD%"
)

// Options are the parsed arguments of one build.
type Options struct {
	// Cwd is the path the build was requested for.
	Cwd string

	// Root is the project root resolved from Cwd.
	Root string
}

// Operation parses and runs builds.
type Operation interface {
	// Parse parses build arguments and resolves the project root.
	//
	// Returns error if the arguments are malformed or no project root
	// exists at or above the --cwd path.
	Parse(argv []string) (Options, error)

	// Run starts the build and returns immediately. done is called exactly
	// once with the build result, unless Run itself returns an error, in
	// which case done is never called.
	Run(ctx context.Context, opts Options, done func(error)) error
}

// Config contains build configuration.
type Config struct {
	// Command is the build command line. It is split with shell quoting
	// rules; %ROOT% and %CWD% are substituted.
	Command string

	// Timeout bounds a single build. Zero means no timeout.
	Timeout time.Duration
}
