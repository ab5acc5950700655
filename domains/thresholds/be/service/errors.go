package service

import "errors"

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// ErrNotFound is returned when the referenced threshold does not exist.
var ErrNotFound = errors.New("threshold not found")
