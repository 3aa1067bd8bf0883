package libdiff

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is wrapped by every error returned when a patch
// assumes a shape its source does not have.  The usual recovery is a full
// resync of the source, never a retry.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeError locates a shape mismatch.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s at %s: %s", ErrShapeMismatch, e.Path, e.Reason)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func ShapeErrorf(path, format string, args ...any) error {
	return &ShapeError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
