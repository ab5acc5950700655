package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const thresholdColumns = `
	id, name, min_amount::text, max_amount::text, approval_type,
	requires_sequential, is_active, created_at, updated_at`

// ThresholdStore administers the configured approval amount bands. The
// resolver only reads active bands; administrators create, edit and
// soft-deactivate them.
type ThresholdStore struct {
	pool *pgxpool.Pool
}

func NewThresholdStore(pool *pgxpool.Pool) (*ThresholdStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ThresholdStore{pool: pool}, nil
}

func (s *ThresholdStore) ListThresholds(ctx context.Context, activeOnly bool) ([]ApprovalThreshold, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM approval_thresholds
		WHERE ($1::bool = FALSE OR is_active)
		ORDER BY min_amount ASC, created_at ASC
	`, thresholdColumns), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []ApprovalThreshold
	for rows.Next() {
		threshold, scanErr := scanThreshold(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		thresholds = append(thresholds, threshold)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thresholds: %w", err)
	}

	return thresholds, nil
}

func (s *ThresholdStore) GetThreshold(ctx context.Context, id uuid.UUID) (ApprovalThreshold, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM approval_thresholds WHERE id = $1
	`, thresholdColumns), id)

	threshold, err := scanThreshold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovalThreshold{}, ErrThresholdNotFound
		}
		return ApprovalThreshold{}, err
	}

	return threshold, nil
}

type CreateThresholdParams struct {
	ID                 uuid.UUID
	Name               string
	MinAmount          decimal.Decimal
	MaxAmount          *decimal.Decimal
	ApprovalType       ApprovalType
	RequiresSequential bool
}

func (s *ThresholdStore) CreateThreshold(ctx context.Context, params CreateThresholdParams) (ApprovalThreshold, error) {
	if params.ID == uuid.Nil {
		return ApprovalThreshold{}, errors.New("threshold id is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return ApprovalThreshold{}, errors.New("threshold name is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO approval_thresholds (
			id, name, min_amount, max_amount, approval_type,
			requires_sequential, is_active, created_at, updated_at
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, TRUE, NOW(), NOW())
		RETURNING %s
	`, thresholdColumns),
		params.ID, params.Name, decimalArg(params.MinAmount),
		nullableDecimalArg(params.MaxAmount), params.ApprovalType, params.RequiresSequential)

	threshold, err := scanThreshold(row)
	if err != nil {
		return ApprovalThreshold{}, fmt.Errorf("insert threshold: %w", err)
	}

	return threshold, nil
}

type UpdateThresholdParams struct {
	Name               *string
	MinAmount          *decimal.Decimal
	MaxAmount          *decimal.Decimal
	ClearMaxAmount     bool
	ApprovalType       *ApprovalType
	RequiresSequential *bool
}

// UpdateThreshold merges the provided fields under a row lock and returns the
// before and after images for audit.
func (s *ThresholdStore) UpdateThreshold(ctx context.Context, id uuid.UUID, params UpdateThresholdParams) (ApprovalThreshold, ApprovalThreshold, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ApprovalThreshold{}, ApprovalThreshold{}, fmt.Errorf("begin update threshold tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM approval_thresholds WHERE id = $1 FOR UPDATE
	`, thresholdColumns), id)

	before, err := scanThreshold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovalThreshold{}, ApprovalThreshold{}, ErrThresholdNotFound
		}
		return ApprovalThreshold{}, ApprovalThreshold{}, fmt.Errorf("load threshold: %w", err)
	}

	name := before.Name
	if params.Name != nil {
		name = strings.TrimSpace(*params.Name)
	}
	minAmount := before.MinAmount
	if params.MinAmount != nil {
		minAmount = *params.MinAmount
	}
	maxAmount := before.MaxAmount
	if params.ClearMaxAmount {
		maxAmount = nil
	} else if params.MaxAmount != nil {
		maxAmount = params.MaxAmount
	}
	approvalType := before.ApprovalType
	if params.ApprovalType != nil {
		approvalType = *params.ApprovalType
	}
	requiresSequential := before.RequiresSequential
	if params.RequiresSequential != nil {
		requiresSequential = *params.RequiresSequential
	}

	updatedRow := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE approval_thresholds
		SET name = $2,
		    min_amount = $3::numeric,
		    max_amount = $4::numeric,
		    approval_type = $5,
		    requires_sequential = $6,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, thresholdColumns),
		id, name, decimalArg(minAmount), nullableDecimalArg(maxAmount),
		approvalType, requiresSequential)

	after, err := scanThreshold(updatedRow)
	if err != nil {
		return ApprovalThreshold{}, ApprovalThreshold{}, fmt.Errorf("update threshold: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return ApprovalThreshold{}, ApprovalThreshold{}, fmt.Errorf("commit update threshold tx: %w", err)
	}

	return before, after, nil
}

// DeactivateThreshold soft-deletes a threshold so it stops participating in resolution.
func (s *ThresholdStore) DeactivateThreshold(ctx context.Context, id uuid.UUID) (ApprovalThreshold, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE approval_thresholds
		SET is_active = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING %s
	`, thresholdColumns), id)

	threshold, err := scanThreshold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovalThreshold{}, ErrThresholdNotFound
		}
		return ApprovalThreshold{}, fmt.Errorf("deactivate threshold: %w", err)
	}

	return threshold, nil
}

func scanThreshold(row pgx.Row) (ApprovalThreshold, error) {
	var (
		threshold ApprovalThreshold
		minAmount string
		maxAmount *string
	)

	err := row.Scan(
		&threshold.ID, &threshold.Name, &minAmount, &maxAmount,
		&threshold.ApprovalType, &threshold.RequiresSequential,
		&threshold.IsActive, &threshold.CreatedAt, &threshold.UpdatedAt,
	)
	if err != nil {
		return ApprovalThreshold{}, err
	}

	if threshold.MinAmount, err = parseDecimal(minAmount); err != nil {
		return ApprovalThreshold{}, err
	}
	if threshold.MaxAmount, err = parseNullableDecimal(maxAmount); err != nil {
		return ApprovalThreshold{}, err
	}

	return threshold, nil
}
