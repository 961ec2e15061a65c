package rebuild

import "fmt"

// BuildDispatchError reports a change that could not be turned into a
// build, typically because no project root exists above the changed path.
type BuildDispatchError struct {
	Path string
	Err  error
}

func (e *BuildDispatchError) Error() string {
	return fmt.Sprintf("cannot dispatch build for %s: %v", e.Path, e.Err)
}

func (e *BuildDispatchError) Unwrap() error {
	return e.Err
}

// BuildExecutionError reports a build that ran and failed.
type BuildExecutionError struct {
	Root string
	Err  error
}

func (e *BuildExecutionError) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.Root, e.Err)
}

func (e *BuildExecutionError) Unwrap() error {
	return e.Err
}
