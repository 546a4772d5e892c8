package access

import (
	"fmt"
	"strings"
)

// Phase indicates which side of the codec produced an error.
type Phase string

const (
	PhaseEncode Phase = "encode"
	PhaseDecode Phase = "decode"
	PhaseSchema Phase = "schema"
)

// Kind categorizes the error.
type Kind string

const (
	KindBufferTooSmall          Kind = "buffer_too_small"
	KindInvalidIdentifierLength Kind = "invalid_identifier_length"
	KindGrowthLimitExceeded     Kind = "growth_limit_exceeded"
	KindNestedObject            Kind = "nested_object"
	KindNoActiveObject          Kind = "no_active_object"
	KindMissingArgument         Kind = "missing_argument"
	KindUnresolvedReference     Kind = "unresolved_reference"
)

// Error is the structured error returned by the byte store, the encode and
// decode contexts and the layers built on them. None of them are
// recoverable: the build or decode in progress has to be discarded.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Offset != 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind, and on Phase when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrBufferTooSmall          = &Error{Kind: KindBufferTooSmall}
	ErrInvalidIdentifierLength = &Error{Kind: KindInvalidIdentifierLength}
	ErrGrowthLimitExceeded     = &Error{Kind: KindGrowthLimitExceeded}
	ErrNestedObject            = &Error{Kind: KindNestedObject}
	ErrNoActiveObject          = &Error{Kind: KindNoActiveObject}
	ErrMissingArgument         = &Error{Kind: KindMissingArgument}
	ErrUnresolvedReference     = &Error{Kind: KindUnresolvedReference}
)

// NewError builds an *Error. detail is formatted with args when any are given.
func NewError(phase Phase, kind Kind, op string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Phase: phase, Kind: kind, Op: op, Detail: detail}
}

// MissingArgument reports malformed field-description data handed to the
// encode or decode contexts.
func MissingArgument(phase Phase, op string, detail string, args ...any) *Error {
	return NewError(phase, KindMissingArgument, op, detail, args...)
}
