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

// Domain-level error sentinel values.
var (
	ErrNotFound        = errors.New("turn not found")
	ErrStageNotFound   = errors.New("stage not found")
	ErrNoDefaultStage  = errors.New("no default stage configured")
	ErrNumberExhausted = errors.New("turn number conflict")
)
