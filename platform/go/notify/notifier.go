// Package notify dispatches approval emails to approvers and requesters.
// Dispatch is notify-and-forget: callers bound each call with a timeout, log
// failures, and never retry.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recipient is a resolved approver or requester mailbox.
type Recipient struct {
	Email string
	Name  string
}

// ApprovalRequestNote carries everything an approver needs to act on a new request.
type ApprovalRequestNote struct {
	TurnID          uuid.UUID
	TurnNumber      string
	PropertyAddress string
	ApprovalType    string
	Amount          decimal.Decimal
	Priority        string
	RequestedBy     string
	Notes           string
	Recipient       Recipient
}

// ApprovalDecisionNote informs the original requester of the outcome.
type ApprovalDecisionNote struct {
	TurnID       uuid.UUID
	TurnNumber   string
	ApprovalType string
	Approved     bool
	DecidedBy    string
	Comments     string
	Recipient    Recipient
}

// Notifier is the outbound email boundary. Implementations must be safe for
// concurrent use and should not block past the context deadline.
type Notifier interface {
	ApprovalRequested(ctx context.Context, note ApprovalRequestNote) error
	ApprovalDecided(ctx context.Context, note ApprovalDecisionNote) error
}
