// Package errs defines the gateway's error taxonomy and maps
// database errors onto it by SQLSTATE class.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is one of the five error classes the Envelope renders.
type Kind string

const (
	Validation  Kind = "validation"
	NotFound    Kind = "not_found"
	Conflict    Kind = "conflict"
	Unavailable Kind = "unavailable"
	Internal    Kind = "internal"
)

// Status returns the HTTP status code that corresponds to k.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the gateway's typed error: a Kind, a human message, and
// optional structured details rendered under the envelope's "details" key.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new Error of the given kind.
func Wrap(cause error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetails returns a copy of e carrying the given details map.
func (e *Error) WithDetails(details map[string]any) *Error {
	n := *e
	n.Details = details
	return &n
}

// Compile-time errors, cited with the offending token.

func UnknownField(name string) *Error {
	return New(Validation, "unknown field %q", name).WithDetails(map[string]any{"field": name})
}

func UnknownRelation(name string) *Error {
	return New(Validation, "unknown relation %q", name).WithDetails(map[string]any{"relation": name})
}

func OperatorTypeMismatch(field, op string) *Error {
	return New(Validation, "operator %q is not valid for field %q", op, field).
		WithDetails(map[string]any{"field": field, "operator": op})
}

func LimitExceeded(limit, max int) *Error {
	return New(Validation, "limit %d exceeds maximum %d", limit, max).
		WithDetails(map[string]any{"limit": limit, "max": max})
}

func MissingField(name string) *Error {
	return New(Validation, "missing required field %q", name).WithDetails(map[string]any{"field": name})
}

func MissingArgument(name string) *Error {
	return New(Validation, "missing required argument %q", name).WithDetails(map[string]any{"argument": name})
}

func KeyShapeMismatch(got []string) *Error {
	return New(Validation, "key does not match the primary key or any unique constraint").
		WithDetails(map[string]any{"key": got})
}

// FromPgError classifies a database error by its SQLSTATE class
// (first two digits of the five-character code), per the gateway's
// propagation policy. Unknown classes default to Internal.
func FromPgError(err error) *Error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Wrap(err, Internal, "unclassified database error")
	}
	class := "00"
	if len(pgErr.Code) >= 2 {
		class = pgErr.Code[:2]
	}
	switch class {
	case "23": // integrity_constraint_violation
		return Wrap(err, Conflict, "%s", pgErr.Message).WithDetails(map[string]any{
			"constraint": pgErr.ConstraintName,
			"sqlstate":   pgErr.Code,
		})
	case "42": // syntax_error_or_access_rule_violation
		return Wrap(err, Validation, "%s", pgErr.Message)
	case "08": // connection_exception
		return Wrap(err, Unavailable, "%s", pgErr.Message)
	default:
		return Wrap(err, Internal, "%s", pgErr.Message).WithDetails(map[string]any{"sqlstate": pgErr.Code})
	}
}

// As reports whether err (or something it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
