package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors surfaced by the stores. Domain services translate these into
// their own error vocabulary before they reach handlers.
var (
	// ErrTurnNotFound indicates the referenced turn does not exist.
	ErrTurnNotFound = errors.New("turn not found")
	// ErrStageNotFound indicates the referenced stage does not exist or is inactive.
	ErrStageNotFound = errors.New("turn stage not found")
	// ErrApprovalNotFound indicates the referenced approval does not exist.
	ErrApprovalNotFound = errors.New("approval not found")
	// ErrThresholdNotFound indicates the referenced threshold does not exist.
	ErrThresholdNotFound = errors.New("approval threshold not found")
	// ErrApprovalNotPending indicates a decision or cancellation was attempted
	// against an approval that already left the pending state.
	ErrApprovalNotPending = errors.New("approval is not pending")
	// ErrTurnNumberConflict indicates a turn number collision.
	ErrTurnNumberConflict = errors.New("turn number already exists")
	// ErrStageKeyConflict indicates a stage key collision.
	ErrStageKeyConflict = errors.New("stage key already exists")
)

const pgUniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}
