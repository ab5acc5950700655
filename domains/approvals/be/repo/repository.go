package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

// Repository exposes the persistence operations required by the approval gate.
// It spans approvals, active thresholds, and the turn-level approval flags so
// the service never talks to stores directly.
type Repository interface {
	CreatePending(ctx context.Context, params persistence.CreateApprovalParams) (persistence.Approval, bool, error)
	GetApproval(ctx context.Context, id uuid.UUID) (persistence.Approval, error)
	ListForTurn(ctx context.Context, turnID uuid.UUID) ([]persistence.Approval, error)
	PendingTypes(ctx context.Context, turnID uuid.UUID) ([]persistence.ApprovalType, error)
	DecideApproval(ctx context.Context, params persistence.DecideApprovalParams) (persistence.Approval, error)
	CancelApproval(ctx context.Context, id uuid.UUID, actorID string) (persistence.CancelApprovalResult, error)

	ListActiveThresholds(ctx context.Context) ([]persistence.ApprovalThreshold, error)

	GetTurn(ctx context.Context, id uuid.UUID) (persistence.Turn, error)
	MarkApprovalsRequested(ctx context.Context, turnID uuid.UUID, types []persistence.ApprovalType) (persistence.Turn, error)
	RecordApprovalGrant(ctx context.Context, turnID uuid.UUID, approvalType persistence.ApprovalType, approvedBy string, approvedAt time.Time) (persistence.Turn, error)
	RecordApprovalRejection(ctx context.Context, turnID uuid.UUID, reason string) (persistence.Turn, error)
}

type postgresRepository struct {
	approvals  *persistence.ApprovalStore
	thresholds *persistence.ThresholdStore
	turns      *persistence.TurnStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(approvals *persistence.ApprovalStore, thresholds *persistence.ThresholdStore, turns *persistence.TurnStore) Repository {
	if approvals == nil {
		panic("approval store is required")
	}
	if thresholds == nil {
		panic("threshold store is required")
	}
	if turns == nil {
		panic("turn store is required")
	}
	return &postgresRepository{approvals: approvals, thresholds: thresholds, turns: turns}
}

func (r *postgresRepository) CreatePending(ctx context.Context, params persistence.CreateApprovalParams) (persistence.Approval, bool, error) {
	return r.approvals.CreatePending(ctx, params)
}

func (r *postgresRepository) GetApproval(ctx context.Context, id uuid.UUID) (persistence.Approval, error) {
	return r.approvals.GetApproval(ctx, id)
}

func (r *postgresRepository) ListForTurn(ctx context.Context, turnID uuid.UUID) ([]persistence.Approval, error) {
	return r.approvals.ListForTurn(ctx, turnID)
}

func (r *postgresRepository) PendingTypes(ctx context.Context, turnID uuid.UUID) ([]persistence.ApprovalType, error) {
	return r.approvals.PendingTypes(ctx, turnID)
}

func (r *postgresRepository) DecideApproval(ctx context.Context, params persistence.DecideApprovalParams) (persistence.Approval, error) {
	return r.approvals.DecideApproval(ctx, params)
}

func (r *postgresRepository) CancelApproval(ctx context.Context, id uuid.UUID, actorID string) (persistence.CancelApprovalResult, error) {
	return r.approvals.CancelApproval(ctx, id, actorID)
}

func (r *postgresRepository) ListActiveThresholds(ctx context.Context) ([]persistence.ApprovalThreshold, error) {
	return r.thresholds.ListThresholds(ctx, true)
}

func (r *postgresRepository) GetTurn(ctx context.Context, id uuid.UUID) (persistence.Turn, error) {
	return r.turns.GetTurn(ctx, id)
}

func (r *postgresRepository) MarkApprovalsRequested(ctx context.Context, turnID uuid.UUID, types []persistence.ApprovalType) (persistence.Turn, error) {
	return r.turns.MarkApprovalsRequested(ctx, turnID, types)
}

func (r *postgresRepository) RecordApprovalGrant(ctx context.Context, turnID uuid.UUID, approvalType persistence.ApprovalType, approvedBy string, approvedAt time.Time) (persistence.Turn, error) {
	return r.turns.RecordApprovalGrant(ctx, turnID, approvalType, approvedBy, approvedAt)
}

func (r *postgresRepository) RecordApprovalRejection(ctx context.Context, turnID uuid.UUID, reason string) (persistence.Turn, error) {
	return r.turns.RecordApprovalRejection(ctx, turnID, reason)
}
