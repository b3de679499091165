// Package dberr defines the closed error-kind taxonomy of spec.md §7 as a
// small Go sentinel/Kind type, queried via errors.Is-style matching against
// a Kind rather than a bare sentinel value, with context wrapped on with
// fmt.Errorf("...: %w", err).
package dberr

import (
	"errors"
	"fmt"
)

// Kind is one closed taxonomy entry from spec.md §7.
type Kind uint8

const (
	KindParse Kind = iota

	// Schema Loader (L)
	KindSchemaConflict
	KindUnknownType
	KindBadDependency
	KindDuplicateField

	// Table Catalog (T)
	KindTableExists
	KindNoSuchTable
	KindNotAMessage

	// Expression Typer (X)
	KindTypeMismatch
	KindUnboundColumn
	KindUnknownField
	KindUnknownVariant
	KindNonExhaustiveMatch
	KindExtraCase
	KindArityMismatch

	// Dependency Analyser (D)
	KindDroppedDependency

	// Evaluator (E)
	KindDivisionByZero
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "Parse"
	case KindSchemaConflict:
		return "SchemaConflict"
	case KindUnknownType:
		return "UnknownType"
	case KindBadDependency:
		return "BadDependency"
	case KindDuplicateField:
		return "DuplicateField"
	case KindTableExists:
		return "TableExists"
	case KindNoSuchTable:
		return "NoSuchTable"
	case KindNotAMessage:
		return "NotAMessage"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindUnboundColumn:
		return "UnboundColumn"
	case KindUnknownField:
		return "UnknownField"
	case KindUnknownVariant:
		return "UnknownVariant"
	case KindNonExhaustiveMatch:
		return "NonExhaustiveMatch"
	case KindExtraCase:
		return "ExtraCase"
	case KindArityMismatch:
		return "ArityMismatch"
	case KindDroppedDependency:
		return "DroppedDependency"
	case KindDivisionByZero:
		return "DivisionByZero"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a message and, optionally, an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dbufdb: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("dbufdb: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, dberr.New(KindX, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a Kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a Kind-tagged error that chains an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// OfKind reports whether err (or something it wraps) is a *Error of kind k.
func OfKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
