package pattern

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline errors.
type ErrorKind string

const (
	// ErrMalformedDocument indicates an unexpected or missing root element,
	// or input that is not XML at all.
	ErrMalformedDocument ErrorKind = "MALFORMED_DOCUMENT"

	// ErrSchemaViolation indicates a broken grammar rule.
	ErrSchemaViolation ErrorKind = "SCHEMA_VIOLATION"

	// ErrVariableTypeConflict indicates two merged variables disagree on type.
	ErrVariableTypeConflict ErrorKind = "VARIABLE_TYPE_CONFLICT"

	// ErrEmptyInput indicates composition was invoked with no patterns.
	ErrEmptyInput ErrorKind = "EMPTY_INPUT"

	// ErrResource indicates an I/O failure reading input or writing output.
	ErrResource ErrorKind = "RESOURCE_ERROR"
)

// Error is the error type returned by every pipeline stage.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Element names the offending element, variable or reference.
	Element string

	// Message is a human-readable description.
	Message string

	// Source identifies the document, when known.
	Source string

	// Line is the 1-based line in Source, when known.
	Line int

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Element != "" {
		msg = fmt.Sprintf("%s: <%s>: %s", e.Kind, e.Element, e.Message)
	}
	switch {
	case e.Source != "" && e.Line > 0:
		msg = fmt.Sprintf("%s:%d: %s", e.Source, e.Line, msg)
	case e.Source != "":
		msg = fmt.Sprintf("%s: %s", e.Source, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error of the given kind.
func Errorf(kind ErrorKind, element, format string, args ...any) *Error {
	return &Error{Kind: kind, Element: element, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from an error chain.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsInputError reports whether err was caused by the caller's input
// rather than by the environment.
func IsInputError(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k != ErrResource
}
