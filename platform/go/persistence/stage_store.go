package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const stageColumns = `
	id, name, key, sequence, requires_approval, requires_vendor, requires_amount,
	requires_lock_box, is_final, is_default, auto_status, is_active, created_at, updated_at`

// StageStore reads and administers the configurable workflow stage graph.
// The workflow engine only ever reads stages; writes happen through the admin CLI.
type StageStore struct {
	pool *pgxpool.Pool
}

func NewStageStore(pool *pgxpool.Pool) (*StageStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &StageStore{pool: pool}, nil
}

// GetStage returns an active stage by id. Inactive stages are invisible to the
// workflow engine; transitioning to one is rejected as not found.
func (s *StageStore) GetStage(ctx context.Context, id uuid.UUID) (TurnStage, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM turn_stages WHERE id = $1 AND is_active
	`, stageColumns), id)

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TurnStage{}, ErrStageNotFound
		}
		return TurnStage{}, err
	}

	return stage, nil
}

// GetDefaultStage returns the stage flagged as default, used for newly created turns.
func (s *StageStore) GetDefaultStage(ctx context.Context) (TurnStage, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM turn_stages WHERE is_default AND is_active
		ORDER BY sequence ASC
		LIMIT 1
	`, stageColumns))

	stage, err := scanStage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TurnStage{}, ErrStageNotFound
		}
		return TurnStage{}, err
	}

	return stage, nil
}

func (s *StageStore) ListStages(ctx context.Context, includeInactive bool) ([]TurnStage, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM turn_stages
		WHERE ($1::bool = TRUE OR is_active)
		ORDER BY sequence ASC
	`, stageColumns), includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []TurnStage
	for rows.Next() {
		stage, scanErr := scanStage(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		stages = append(stages, stage)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}

	return stages, nil
}

type CreateStageParams struct {
	ID               uuid.UUID
	Name             string
	Key              string
	Sequence         int
	RequiresApproval bool
	RequiresVendor   bool
	RequiresAmount   bool
	RequiresLockBox  bool
	IsFinal          bool
	IsDefault        bool
	AutoStatus       *AutoStatus
}

func (s *StageStore) CreateStage(ctx context.Context, params CreateStageParams) (TurnStage, error) {
	if params.ID == uuid.Nil {
		return TurnStage{}, errors.New("stage id is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return TurnStage{}, errors.New("stage name is required")
	}
	if strings.TrimSpace(params.Key) == "" {
		return TurnStage{}, errors.New("stage key is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO turn_stages (
			id, name, key, sequence, requires_approval, requires_vendor, requires_amount,
			requires_lock_box, is_final, is_default, auto_status, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE, NOW(), NOW())
		RETURNING %s
	`, stageColumns),
		params.ID, params.Name, params.Key, params.Sequence,
		params.RequiresApproval, params.RequiresVendor, params.RequiresAmount,
		params.RequiresLockBox, params.IsFinal, params.IsDefault, params.AutoStatus)

	stage, err := scanStage(row)
	if err != nil {
		if isUniqueViolation(err) {
			return TurnStage{}, ErrStageKeyConflict
		}
		return TurnStage{}, fmt.Errorf("insert stage: %w", err)
	}

	return stage, nil
}

// DeactivateStage soft-deactivates a stage. History rows keep referencing it;
// there is no hard delete.
func (s *StageStore) DeactivateStage(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE turn_stages
		SET is_active = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND is_active
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate stage: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrStageNotFound
	}

	return nil
}

func scanStage(row pgx.Row) (TurnStage, error) {
	var stage TurnStage
	err := row.Scan(
		&stage.ID, &stage.Name, &stage.Key, &stage.Sequence,
		&stage.RequiresApproval, &stage.RequiresVendor, &stage.RequiresAmount,
		&stage.RequiresLockBox, &stage.IsFinal, &stage.IsDefault,
		&stage.AutoStatus, &stage.IsActive, &stage.CreatedAt, &stage.UpdatedAt,
	)
	if err != nil {
		return TurnStage{}, err
	}
	return stage, nil
}
