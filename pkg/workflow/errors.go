package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors into the stable codes surfaced to callers.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindDependency Kind = "DEPENDENCY_ERROR"
	KindTimeout    Kind = "TIMEOUT_ERROR"
	KindConflict   Kind = "CONFLICT_ERROR"
	KindInternal   Kind = "INTERNAL_ERROR"
)

// Error carries a stable kind plus a human-readable reason. The true cause is
// always embedded, never swallowed or replaced with a fallback value.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Errorf builds a typed engine error. Pipeline steps use it when a failure
// should carry a specific kind instead of the default dependency
// classification.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the engine error kind, defaulting to INTERNAL_ERROR for
// errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
