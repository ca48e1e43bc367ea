package engine

import (
	"fmt"

	"reportline/internal/repo"
)

// ErrNotFound is returned when a report or approver pair does not exist.
var ErrNotFound = repo.ErrNotFound

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvariantError marks a broken storage invariant, such as two active
// approver rows for one (report, user) pair.
type InvariantError struct {
	Err error
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.Err.Error() }

func (e *InvariantError) Unwrap() error { return e.Err }
