// ABOUTME: Error values for schema inspection, conversion and loading
// ABOUTME: Sentinels are matched with errors.Is; FieldError carries the key path

package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Conversion failures.
var (
	ErrExpectedMapping  = errors.New("expected mapping")
	ErrExpectedSequence = errors.New("expected sequence")
	ErrArityMismatch    = errors.New("arity mismatch")
	ErrNotAllowed       = errors.New("value not in allowed set")
	ErrBoolString       = errors.New("cannot convert boolean string")
	ErrConvert          = errors.New("cannot convert value")
	ErrUnsupportedType  = errors.New("unsupported field type")
)

// Loading failures.
var (
	ErrRequiredField  = errors.New("missing required field")
	ErrMalformedInput = errors.New("malformed input")
	ErrValidation     = errors.New("validation failed")
)

// Structural (definition-time) failures.
var (
	ErrNotSchema          = errors.New("not a schema type")
	ErrMethodNotAllowed   = errors.New("method not allowed in schema type")
	ErrUnknownDescription = errors.New("description for unknown field")
	ErrInvalidDefault     = errors.New("invalid default value")
)

// Error is a failure with a user-facing message and a sentinel kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// FieldError attaches the key path of the failing field to an error.
// Nested failures are flattened into one dotted path, e.g. "models[1].name".
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field '%s': %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// wrapField prefixes err with the given key or index segment.
func wrapField(segment string, err error) error {
	if fe, ok := err.(*FieldError); ok {
		return &FieldError{Field: joinPath(segment, fe.Field), Err: fe.Err}
	}
	return &FieldError{Field: segment, Err: err}
}

func joinPath(parent, child string) string {
	if strings.HasPrefix(child, "[") {
		return parent + child
	}
	return parent + "." + child
}
