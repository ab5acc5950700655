package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

// Repository exposes the persistence operations the workflow engine uses:
// turns, their stage history, and read access to the stage configuration.
type Repository interface {
	CreateTurn(ctx context.Context, params persistence.CreateTurnParams) (persistence.Turn, error)
	GetTurn(ctx context.Context, id uuid.UUID) (persistence.Turn, error)
	ListTurns(ctx context.Context, params persistence.ListTurnsParams) ([]persistence.Turn, error)
	UpdateTurn(ctx context.Context, id uuid.UUID, params persistence.UpdateTurnParams) (persistence.Turn, persistence.Turn, error)
	TransitionTurn(ctx context.Context, params persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error)
	ListStageHistory(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error)
	NextTurnSequence(ctx context.Context) (int64, error)

	GetStage(ctx context.Context, id uuid.UUID) (persistence.TurnStage, error)
	GetDefaultStage(ctx context.Context) (persistence.TurnStage, error)
	ListStages(ctx context.Context, includeInactive bool) ([]persistence.TurnStage, error)
}

type postgresRepository struct {
	turns  *persistence.TurnStore
	stages *persistence.StageStore
}

// NewPostgresRepository builds a Repository backed by the shared persistence layer.
func NewPostgresRepository(turns *persistence.TurnStore, stages *persistence.StageStore) Repository {
	if turns == nil {
		panic("turn store is required")
	}
	if stages == nil {
		panic("stage store is required")
	}
	return &postgresRepository{turns: turns, stages: stages}
}

func (r *postgresRepository) CreateTurn(ctx context.Context, params persistence.CreateTurnParams) (persistence.Turn, error) {
	return r.turns.CreateTurn(ctx, params)
}

func (r *postgresRepository) GetTurn(ctx context.Context, id uuid.UUID) (persistence.Turn, error) {
	return r.turns.GetTurn(ctx, id)
}

func (r *postgresRepository) ListTurns(ctx context.Context, params persistence.ListTurnsParams) ([]persistence.Turn, error) {
	return r.turns.ListTurns(ctx, params)
}

func (r *postgresRepository) UpdateTurn(ctx context.Context, id uuid.UUID, params persistence.UpdateTurnParams) (persistence.Turn, persistence.Turn, error) {
	return r.turns.UpdateTurn(ctx, id, params)
}

func (r *postgresRepository) TransitionTurn(ctx context.Context, params persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error) {
	return r.turns.TransitionTurn(ctx, params)
}

func (r *postgresRepository) ListStageHistory(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error) {
	return r.turns.ListStageHistory(ctx, turnID)
}

func (r *postgresRepository) NextTurnSequence(ctx context.Context) (int64, error) {
	return r.turns.NextTurnSequence(ctx)
}

func (r *postgresRepository) GetStage(ctx context.Context, id uuid.UUID) (persistence.TurnStage, error) {
	return r.stages.GetStage(ctx, id)
}

func (r *postgresRepository) GetDefaultStage(ctx context.Context) (persistence.TurnStage, error) {
	return r.stages.GetDefaultStage(ctx)
}

func (r *postgresRepository) ListStages(ctx context.Context, includeInactive bool) ([]persistence.TurnStage, error) {
	return r.stages.ListStages(ctx, includeInactive)
}
