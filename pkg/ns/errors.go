package ns

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no entry is registered under the path.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath indicates the path isn't an absolute clean path.
	ErrInvalidPath = errors.New("invalid path")
	// ErrIsDir indicates a directory can't be opened as a device.
	ErrIsDir = errors.New("is a directory")
	// ErrExists indicates the name is already registered.
	ErrExists = errors.New("already exists")
	// ErrRootNotLast indicates a mount was registered after the root.
	ErrRootNotLast = errors.New("root mount must be last")
)

// PathError records the failed operation and path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements error.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}
