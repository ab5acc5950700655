package service

import "errors"

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError captures input validation problems surfaced by the service,
// including attempts to decide an approval that already left pending.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound     = errors.New("approval not found")
	ErrTurnNotFound = errors.New("turn not found")
)
