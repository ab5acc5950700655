package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

// Repository exposes the persistence operations for threshold administration.
type Repository interface {
	ListThresholds(ctx context.Context, activeOnly bool) ([]persistence.ApprovalThreshold, error)
	GetThreshold(ctx context.Context, id uuid.UUID) (persistence.ApprovalThreshold, error)
	CreateThreshold(ctx context.Context, params persistence.CreateThresholdParams) (persistence.ApprovalThreshold, error)
	UpdateThreshold(ctx context.Context, id uuid.UUID, params persistence.UpdateThresholdParams) (persistence.ApprovalThreshold, persistence.ApprovalThreshold, error)
	DeactivateThreshold(ctx context.Context, id uuid.UUID) (persistence.ApprovalThreshold, error)
}

type postgresRepository struct {
	thresholds *persistence.ThresholdStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(thresholds *persistence.ThresholdStore) Repository {
	if thresholds == nil {
		panic("threshold store is required")
	}
	return &postgresRepository{thresholds: thresholds}
}

func (r *postgresRepository) ListThresholds(ctx context.Context, activeOnly bool) ([]persistence.ApprovalThreshold, error) {
	return r.thresholds.ListThresholds(ctx, activeOnly)
}

func (r *postgresRepository) GetThreshold(ctx context.Context, id uuid.UUID) (persistence.ApprovalThreshold, error) {
	return r.thresholds.GetThreshold(ctx, id)
}

func (r *postgresRepository) CreateThreshold(ctx context.Context, params persistence.CreateThresholdParams) (persistence.ApprovalThreshold, error) {
	return r.thresholds.CreateThreshold(ctx, params)
}

func (r *postgresRepository) UpdateThreshold(ctx context.Context, id uuid.UUID, params persistence.UpdateThresholdParams) (persistence.ApprovalThreshold, persistence.ApprovalThreshold, error) {
	return r.thresholds.UpdateThreshold(ctx, id, params)
}

func (r *postgresRepository) DeactivateThreshold(ctx context.Context, id uuid.UUID) (persistence.ApprovalThreshold, error) {
	return r.thresholds.DeactivateThreshold(ctx, id)
}
