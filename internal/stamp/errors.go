package stamp

import (
	"errors"
	"fmt"
)

// Failure categories of a stamp run. Every error returned by the Stamper
// wraps exactly one of these.
var (
	ErrCounterRead   = errors.New("counter store unreadable")
	ErrCounterParse  = errors.New("counter store content invalid")
	ErrCounterWrite  = errors.New("counter store unwritable")
	ErrHeaderRead    = errors.New("header unreadable")
	ErrMarkerMissing = errors.New("header marker missing")
	ErrHeaderWrite   = errors.New("header unwritable")
)

// Error codes for programmatic handling
const (
	CodeCounterRead   = "COUNTER_READ"
	CodeCounterParse  = "COUNTER_PARSE"
	CodeCounterWrite  = "COUNTER_WRITE"
	CodeHeaderRead    = "HEADER_READ"
	CodeMarkerMissing = "MARKER_MISSING"
	CodeHeaderWrite   = "HEADER_WRITE"
	CodeCanceled      = "CANCELED"
	CodeInternalError = "INTERNAL_ERROR"
)

// Error describes a failed step of a stamp run.
type Error struct {
	Op   string // step that failed, e.g. "read counter"
	Path string // file the step was operating on
	Kind error  // one of the Err* categories
	Err  error  // underlying cause
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, path string, kind, err error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

// GetErrorCode returns the code for a stamp error
func GetErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrCounterRead):
		return CodeCounterRead
	case errors.Is(err, ErrCounterParse):
		return CodeCounterParse
	case errors.Is(err, ErrCounterWrite):
		return CodeCounterWrite
	case errors.Is(err, ErrHeaderRead):
		return CodeHeaderRead
	case errors.Is(err, ErrMarkerMissing):
		return CodeMarkerMissing
	case errors.Is(err, ErrHeaderWrite):
		return CodeHeaderWrite
	case isCanceled(err):
		return CodeCanceled
	default:
		return CodeInternalError
	}
}

// IsCounterError reports whether err happened before the header was touched.
func IsCounterError(err error) bool {
	return errors.Is(err, ErrCounterRead) ||
		errors.Is(err, ErrCounterParse) ||
		errors.Is(err, ErrCounterWrite)
}

// IsHeaderError reports whether err came from the header steps.
func IsHeaderError(err error) bool {
	return errors.Is(err, ErrHeaderRead) ||
		errors.Is(err, ErrMarkerMissing) ||
		errors.Is(err, ErrHeaderWrite)
}
