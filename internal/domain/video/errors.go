package video

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers absent and unpublished assets alike, so the two
	// are indistinguishable to clients.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput rejects malformed ids, tiers and segment names
	// before any state is touched.
	ErrInvalidInput = errors.New("invalid input")
)

// ToolError reports a failed external tool invocation. Missing is set when
// the binary is not installed at all, as opposed to a probe/codec failure.
type ToolError struct {
	Tool    string
	Missing bool
	Err     error
}

func (e *ToolError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s not installed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// StorageError reports a filesystem failure during cleanup or directory
// creation. Missing files are not storage errors.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error at %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
