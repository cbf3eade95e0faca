// Package value implements the RTFS runtime value model: the tagged union of
// scalars, collections, functions, and resource handles that every RTFS
// expression evaluates to, plus the error kind taxonomy shared across the
// parser, IR lowering, evaluator, and orchestrator.
package value

import (
	"errors"
	"fmt"
)

// Kind tags the category of an Error so callers can branch with errors.As
// and catch clauses can match on a keyword without parsing messages.
type Kind string

// The error taxonomy from the specification's error handling design. Each
// kind is carried as a keyword tag on error Values and propagates unchanged
// from the site that raised it to the orchestrator boundary.
const (
	KindParse             Kind = "parse"
	KindLowering          Kind = "lowering"
	KindType              Kind = "type"
	KindArity             Kind = "arity"
	KindUndefined         Kind = "undefined"
	KindSecurityViolation Kind = "security-violation"
	KindResource          Kind = "resource"
	KindCapability        Kind = "capability"
	KindCancelled         Kind = "cancelled"
	KindTimeout           Kind = "timeout"
	KindGeneric           Kind = "generic"
)

// Span locates a diagnostic in source text. Line and Col are 1-based.
type Span struct {
	StartLine, StartCol int
	EndLine, EndCol     int
	Text                string
}

// Error is the single carrier for every RTFS failure: parse diagnostics,
// lowering diagnostics, and runtime errors. It implements the standard error
// interface and supports errors.Is/errors.As via Unwrap, and is also a Value
// (see Error as Value below) so it can be caught by try/catch.
type Error struct {
	ErrKind Kind
	Msg     string
	Span    *Span
	Wrapped error
	Hints   []string
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at %d:%d)", e.ErrKind, e.Msg, e.Span.StartLine, e.Span.StartCol)
	}
	return fmt.Sprintf("%s: %s", e.ErrKind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is allows errors.Is(err, &Error{ErrKind: KindTimeout}) style matching on kind alone.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		if o.Msg == "" && o.Span == nil {
			return o.ErrKind == e.ErrKind
		}
	}
	return false
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{ErrKind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Newf is an alias for New kept for readability at call sites that already
// read naturally as "newf(...)"; both forms are used across the codebase,
// matching the uneven texture of hand-written utility aliases elsewhere in
// the pack.
func Newf(kind Kind, format string, args ...any) *Error { return New(kind, format, args...) }

// WithSpan attaches a source span to an error and returns it for chaining.
func (e *Error) WithSpan(s *Span) *Error {
	e.Span = s
	return e
}

// WithHint appends a human-readable hint.
func (e *Error) WithHint(h string) *Error {
	e.Hints = append(e.Hints, h)
	return e
}

// Wrap builds an Error of the given kind around an underlying Go error.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{ErrKind: kind, Msg: err.Error(), Wrapped: err}
}
