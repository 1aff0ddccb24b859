// Package apperr defines the failure kinds reported by the sprint and board
// services and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	InvalidOperation
	InvalidTransition
	Conflict
	OrderViolation
	EmptyScope
	IncompleteWork
)

var kindNames = map[Kind]string{
	Internal:          "internal",
	Validation:        "validation",
	NotFound:          "not_found",
	InvalidOperation:  "invalid_operation",
	InvalidTransition: "invalid_transition",
	Conflict:          "conflict",
	OrderViolation:    "order_violation",
	EmptyScope:        "empty_scope",
	IncompleteWork:    "incomplete_work",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure with a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it as the cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err. Unclassified errors
// are reported generically so store details stay in the logs.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps err to the status code of the failure envelope.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Validation, InvalidOperation, InvalidTransition, Conflict,
		OrderViolation, EmptyScope, IncompleteWork:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
