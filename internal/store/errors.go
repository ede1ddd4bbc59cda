package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DuplicateError is returned when an insert or update violates a unique
// constraint. Field names the conflicting column so callers can report a
// field-level validation error without exposing driver detail.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// Postgres unique_violation.
const uniqueViolationCode = "23505"

var constraintFields = map[string]string{
	"users_username_key":           "username",
	"users_email_key":              "email",
	"clothing_categories_name_key": "name",
}

// translateUnique converts a pq unique-violation error into a DuplicateError
// naming the conflicting field. Other errors pass through untouched.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		if field, ok := constraintFields[pqErr.Constraint]; ok {
			return &DuplicateError{Field: field}
		}
		return &DuplicateError{Field: pqErr.Constraint}
	}
	return err
}
