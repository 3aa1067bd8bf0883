package api

import (
	"fmt"
)

// Error represents an API error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Sub     string `json:"sub,omitempty"` // set when a subscription failed
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Is implements the errors.Is interface for error matching.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// Match by code if target has a code
	if t.Code != "" {
		return e.Code == t.Code
	}
	if t.Message != "" {
		return e.Message == t.Message
	}
	return false
}

// --- Error codes ---

const (
	ErrCodeInvalidMessage    = "invalid_message"
	ErrCodeInvalidQuery      = "invalid_query"
	ErrCodeNotFound          = "not_found" // no such subscription
	ErrCodeAlreadySubscribed = "already_subscribed"
	ErrCodeShapeMismatch     = "shape_mismatch"
	ErrCodeCodec             = "codec"
	ErrCodeSlowConsumer      = "slow_consumer" // subscription dropped
	ErrCodeInternal          = "internal"
	ErrCodeUnavailable       = "unavailable" // session limit reached
)

var (
	ErrInvalidMessage = NewError(ErrCodeInvalidMessage, "")
	ErrInvalidQuery   = NewError(ErrCodeInvalidQuery, "")
	ErrNotFound       = NewError(ErrCodeNotFound, "")
	ErrSlowConsumer   = NewError(ErrCodeSlowConsumer, "")
)
