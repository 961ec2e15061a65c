package watchset

import "fmt"

// ManifestReadError reports a root whose manifest could not be located or
// parsed.
type ManifestReadError struct {
	Root string
	Err  error
}

func (e *ManifestReadError) Error() string {
	return fmt.Sprintf("failed to read manifest of %s: %v", e.Root, e.Err)
}

func (e *ManifestReadError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a failure while expanding a root.
type FilesystemError struct {
	Root string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	if e.Path == "" || e.Path == e.Root {
		return fmt.Sprintf("failed to expand %s: %v", e.Root, e.Err)
	}
	return fmt.Sprintf("failed to expand %s at %s: %v", e.Root, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
