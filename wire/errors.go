package wire

import (
	"errors"
	"fmt"
)

// ErrCodec is wrapped by every error decoding a malformed patch.  A
// rejected patch means the stream can no longer be followed
// incrementally; the receiver should resync.
var ErrCodec = errors.New("codec error")

// Error locates a malformed tuple.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %s", ErrCodec, e.Path, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrCodec
}

func errorf(path, format string, args ...any) error {
	return &Error{Path: path, Reason: fmt.Sprintf(format, args...)}
}
