// Package apperr defines the error taxonomy shared by services and handlers.
//
// Services return errors of one of four kinds; the HTTP layer maps each kind
// to a status code. Store/driver errors are translated before they reach a
// handler so implementation detail never leaks into responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping.
type Kind int

const (
	// KindValidation covers malformed, missing, or conflicting input. 400.
	KindValidation Kind = iota + 1

	// KindUnauthorized covers missing or invalid credentials/tokens. 401.
	KindUnauthorized

	// KindForbidden covers authenticated actors lacking permission. 403.
	KindForbidden

	// KindNotFound covers resources absent from the actor's visible scope. 404.
	KindNotFound
)

// Error is a taxonomy error. Fields is set for field-level validation
// failures (e.g., a duplicate username).
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %v", e.Msg, e.Fields)
	}
	return e.Msg
}

// Validation returns a KindValidation error with a message.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// FieldErrors returns a KindValidation error carrying per-field messages.
func FieldErrors(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: "validation failed", Fields: fields}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

// Forbidden returns a KindForbidden error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// NotFound returns a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// KindOf reports the kind of err, or 0 when err is not a taxonomy error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

// IsKind reports whether err is a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
