package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Table names referenced by audit records.
const (
	TurnsTable              = "turns"
	TurnStagesTable         = "turn_stages"
	TurnStageHistoryTable   = "turn_stage_history"
	ApprovalsTable          = "approvals"
	ApprovalThresholdsTable = "approval_thresholds"
	AuditLogsTable          = "audit_logs"
)

// TurnStatus is the coarse lifecycle label derived from the current stage configuration.
type TurnStatus string

const (
	TurnStatusDraft      TurnStatus = "draft"
	TurnStatusInProgress TurnStatus = "in_progress"
	TurnStatusOnHold     TurnStatus = "on_hold"
	TurnStatusComplete   TurnStatus = "complete"
	TurnStatusCancelled  TurnStatus = "cancelled"
)

// TurnPriority orders turns for display and dispatch.
type TurnPriority string

const (
	TurnPriorityLow    TurnPriority = "low"
	TurnPriorityMedium TurnPriority = "medium"
	TurnPriorityHigh   TurnPriority = "high"
	TurnPriorityUrgent TurnPriority = "urgent"
)

// ApprovalType identifies a required sign-off tier.
type ApprovalType string

const (
	ApprovalTypeDFO ApprovalType = "dfo"
	ApprovalTypeHO  ApprovalType = "ho"
)

// ApprovalStatus tracks the one-directional lifecycle of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "pending"
	ApprovalStatusApproved  ApprovalStatus = "approved"
	ApprovalStatusRejected  ApprovalStatus = "rejected"
	ApprovalStatusCancelled ApprovalStatus = "cancelled"
)

// AuditAction is the kind of event an audit record describes.
type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionView     AuditAction = "VIEW"
	AuditActionExport   AuditAction = "EXPORT"
	AuditActionApprove  AuditAction = "APPROVE"
	AuditActionReject   AuditAction = "REJECT"
	AuditActionAssign   AuditAction = "ASSIGN"
	AuditActionComplete AuditAction = "COMPLETE"
)

// AutoStatus is the stage configuration tag mapped to a TurnStatus on entry.
type AutoStatus string

const (
	AutoStatusDraft     AutoStatus = "DRAFT"
	AutoStatusActive    AutoStatus = "ACTIVE"
	AutoStatusPending   AutoStatus = "PENDING"
	AutoStatusOnHold    AutoStatus = "ON_HOLD"
	AutoStatusCompleted AutoStatus = "COMPLETED"
	AutoStatusCancelled AutoStatus = "CANCELLED"
)

// Turn is a tracked unit of renovation work against a property.
type Turn struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	TurnNumber       string           `db:"turn_number" json:"turnNumber"`
	PropertyID       uuid.UUID        `db:"property_id" json:"propertyId"`
	VendorID         *uuid.UUID       `db:"vendor_id" json:"vendorId,omitempty"`
	StageID          *uuid.UUID       `db:"stage_id" json:"stageId,omitempty"`
	Status           TurnStatus       `db:"status" json:"status"`
	Priority         TurnPriority     `db:"priority" json:"priority"`
	EstimatedCost    *decimal.Decimal `db:"estimated_cost" json:"estimatedCost,omitempty"`
	ActualCost       *decimal.Decimal `db:"actual_cost" json:"actualCost,omitempty"`
	NeedsDfoApproval bool             `db:"needs_dfo_approval" json:"needsDfoApproval"`
	DfoApprovedBy    *string          `db:"dfo_approved_by" json:"dfoApprovedBy,omitempty"`
	DfoApprovedAt    *time.Time       `db:"dfo_approved_at" json:"dfoApprovedAt,omitempty"`
	NeedsHoApproval  bool             `db:"needs_ho_approval" json:"needsHoApproval"`
	HoApprovedBy     *string          `db:"ho_approved_by" json:"hoApprovedBy,omitempty"`
	HoApprovedAt     *time.Time       `db:"ho_approved_at" json:"hoApprovedAt,omitempty"`
	RejectionReason  *string          `db:"rejection_reason" json:"rejectionReason,omitempty"`
	StageEnteredAt   *time.Time       `db:"stage_entered_at" json:"stageEnteredAt,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// TurnStage is a named node in the configurable workflow graph.
type TurnStage struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	Name             string      `db:"name" json:"name"`
	Key              string      `db:"key" json:"key"`
	Sequence         int         `db:"sequence" json:"sequence"`
	RequiresApproval bool        `db:"requires_approval" json:"requiresApproval"`
	RequiresVendor   bool        `db:"requires_vendor" json:"requiresVendor"`
	RequiresAmount   bool        `db:"requires_amount" json:"requiresAmount"`
	RequiresLockBox  bool        `db:"requires_lock_box" json:"requiresLockBox"`
	IsFinal          bool        `db:"is_final" json:"isFinal"`
	IsDefault        bool        `db:"is_default" json:"isDefault"`
	AutoStatus       *AutoStatus `db:"auto_status" json:"autoStatus,omitempty"`
	IsActive         bool        `db:"is_active" json:"isActive"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// TurnStageHistory is one append-only record per stage transition.
// DurationMs is the dwell time in the previous stage in milliseconds, nil for
// the very first transition.
type TurnStageHistory struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TurnID      uuid.UUID  `db:"turn_id" json:"turnId"`
	FromStageID *uuid.UUID `db:"from_stage_id" json:"fromStageId,omitempty"`
	ToStageID   uuid.UUID  `db:"to_stage_id" json:"toStageId"`
	ChangedBy   string     `db:"changed_by" json:"changedBy"`
	Reason      *string    `db:"reason" json:"reason,omitempty"`
	DurationMs  *int64     `db:"duration_ms" json:"durationMs,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// ApprovalThreshold maps a monetary band to a required approval type.
// MaxAmount is nil for an unbounded band; both bounds are inclusive.
type ApprovalThreshold struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	Name               string           `db:"name" json:"name"`
	MinAmount          decimal.Decimal  `db:"min_amount" json:"minAmount"`
	MaxAmount          *decimal.Decimal `db:"max_amount" json:"maxAmount,omitempty"`
	ApprovalType       ApprovalType     `db:"approval_type" json:"approvalType"`
	RequiresSequential bool             `db:"requires_sequential" json:"requiresSequential"`
	IsActive           bool             `db:"is_active" json:"isActive"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// Approval is a single authorization request raised against a turn.
type Approval struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TurnID          uuid.UUID       `db:"turn_id" json:"turnId"`
	ApprovalType    ApprovalType    `db:"approval_type" json:"approvalType"`
	Status          ApprovalStatus  `db:"status" json:"status"`
	RequestedBy     string          `db:"requested_by" json:"requestedBy"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	ApprovedBy      *string         `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time      `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedBy      *string         `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time      `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// AuditLog is an immutable record of a state change or access event.
type AuditLog struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	TableName     string         `db:"table_name" json:"tableName"`
	RecordID      string         `db:"record_id" json:"recordId"`
	Action        AuditAction    `db:"action" json:"action"`
	ActorID       string         `db:"actor_id" json:"actorId"`
	ActorEmail    *string        `db:"actor_email" json:"actorEmail,omitempty"`
	ActorRole     *string        `db:"actor_role" json:"actorRole,omitempty"`
	OldValues     map[string]any `db:"old_values" json:"oldValues,omitempty"`
	NewValues     map[string]any `db:"new_values" json:"newValues,omitempty"`
	ChangedFields []string       `db:"changed_fields" json:"changedFields,omitempty"`
	TurnID        *uuid.UUID     `db:"turn_id" json:"turnId,omitempty"`
	PropertyID    *uuid.UUID     `db:"property_id" json:"propertyId,omitempty"`
	VendorID      *uuid.UUID     `db:"vendor_id" json:"vendorId,omitempty"`
	Context       *string        `db:"context" json:"context,omitempty"`
	Metadata      map[string]any `db:"metadata" json:"metadata,omitempty"`
	IPAddress     *string        `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent     *string        `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// ValidTurnStatus reports whether s is a known coarse status.
func ValidTurnStatus(s TurnStatus) bool {
	switch s {
	case TurnStatusDraft, TurnStatusInProgress, TurnStatusOnHold, TurnStatusComplete, TurnStatusCancelled:
		return true
	}
	return false
}

// ValidApprovalType reports whether t is a known approval tier.
func ValidApprovalType(t ApprovalType) bool {
	return t == ApprovalTypeDFO || t == ApprovalTypeHO
}

// ValidTurnPriority reports whether p is a known priority.
func ValidTurnPriority(p TurnPriority) bool {
	switch p {
	case TurnPriorityLow, TurnPriorityMedium, TurnPriorityHigh, TurnPriorityUrgent:
		return true
	}
	return false
}
