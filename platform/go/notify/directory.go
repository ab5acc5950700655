package notify

import "strings"

// Directory resolves recipients for outbound notifications. User management is
// an external system; this abstraction keeps the workflow engine decoupled
// from wherever mailboxes actually live.
type Directory interface {
	// ApproverFor returns the mailbox that receives new approval requests of
	// the given type.
	ApproverFor(approvalType string) (Recipient, bool)
	// UserByID resolves an actor identifier to a mailbox, used to notify the
	// original requester of a decision.
	UserByID(actorID string) (Recipient, bool)
}

// StaticDirectory is a config-driven Directory: a fixed approver mailbox per
// type, and requester resolution that accepts actor ids that already are
// email addresses.
type StaticDirectory struct {
	approvers map[string]Recipient
}

func NewStaticDirectory(approvers map[string]Recipient) *StaticDirectory {
	if approvers == nil {
		approvers = map[string]Recipient{}
	}
	return &StaticDirectory{approvers: approvers}
}

func (d *StaticDirectory) ApproverFor(approvalType string) (Recipient, bool) {
	r, ok := d.approvers[approvalType]
	return r, ok && r.Email != ""
}

func (d *StaticDirectory) UserByID(actorID string) (Recipient, bool) {
	if strings.Contains(actorID, "@") {
		return Recipient{Email: actorID}, true
	}
	return Recipient{}, false
}
