package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const approvalColumns = `
	id, turn_id, approval_type, status, requested_by, amount::text, notes,
	approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	created_at, updated_at`

// ApprovalStore persists approval requests. The at-most-one-pending-per-(turn,
// type) invariant is enforced by a partial unique index, so concurrent requests
// cannot slip a duplicate past the existence check.
type ApprovalStore struct {
	pool *pgxpool.Pool
}

func NewApprovalStore(pool *pgxpool.Pool) (*ApprovalStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ApprovalStore{pool: pool}, nil
}

type CreateApprovalParams struct {
	ID           uuid.UUID
	TurnID       uuid.UUID
	ApprovalType ApprovalType
	RequestedBy  string
	Amount       decimal.Decimal
	Notes        *string
}

// CreatePending inserts a pending approval unless one of the same type is
// already pending for the turn. The second return value reports whether a row
// was actually created; a conflict with an existing pending approval is not an
// error, it is the idempotent no-op the gate relies on.
func (s *ApprovalStore) CreatePending(ctx context.Context, params CreateApprovalParams) (Approval, bool, error) {
	if params.ID == uuid.Nil {
		return Approval{}, false, errors.New("approval id is required")
	}
	if params.RequestedBy == "" {
		return Approval{}, false, errors.New("requested by is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO approvals (
			id, turn_id, approval_type, status, requested_by, amount, notes, created_at, updated_at
		) VALUES ($1, $2, $3, 'pending', $4, $5::numeric, $6, NOW(), NOW())
		ON CONFLICT (turn_id, approval_type) WHERE status = 'pending' DO NOTHING
		RETURNING %s
	`, approvalColumns),
		params.ID, params.TurnID, params.ApprovalType, params.RequestedBy,
		decimalArg(params.Amount), params.Notes)

	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race or a pending approval already existed; either way
			// the invariant holds and there is nothing to create.
			return Approval{}, false, nil
		}
		return Approval{}, false, fmt.Errorf("insert approval: %w", err)
	}

	return approval, true, nil
}

func (s *ApprovalStore) GetApproval(ctx context.Context, id uuid.UUID) (Approval, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM approvals WHERE id = $1
	`, approvalColumns), id)

	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, ErrApprovalNotFound
		}
		return Approval{}, err
	}

	return approval, nil
}

func (s *ApprovalStore) ListForTurn(ctx context.Context, turnID uuid.UUID) ([]Approval, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM approvals
		WHERE turn_id = $1
		ORDER BY created_at ASC
	`, approvalColumns), turnID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []Approval
	for rows.Next() {
		approval, scanErr := scanApproval(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		approvals = append(approvals, approval)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}

	return approvals, nil
}

// PendingTypes returns the approval types currently pending for a turn.
func (s *ApprovalStore) PendingTypes(ctx context.Context, turnID uuid.UUID) ([]ApprovalType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT approval_type FROM approvals
		WHERE turn_id = $1 AND status = 'pending'
	`, turnID)
	if err != nil {
		return nil, fmt.Errorf("pending approval types: %w", err)
	}
	defer rows.Close()

	var types []ApprovalType
	for rows.Next() {
		var t ApprovalType
		if scanErr := rows.Scan(&t); scanErr != nil {
			return nil, scanErr
		}
		types = append(types, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending types: %w", err)
	}

	return types, nil
}

type DecideApprovalParams struct {
	ID              uuid.UUID
	Approve         bool
	ActorID         string
	RejectionReason *string
	DecidedAt       time.Time
}

// DecideApproval moves a pending approval to approved or rejected. Approvals
// that already left pending are immutable; attempting a second decision
// returns ErrApprovalNotPending with no state change.
func (s *ApprovalStore) DecideApproval(ctx context.Context, params DecideApprovalParams) (Approval, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Approval{}, fmt.Errorf("begin decide tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := lockApproval(ctx, tx, params.ID)
	if err != nil {
		return Approval{}, err
	}
	if current.Status != ApprovalStatusPending {
		return Approval{}, ErrApprovalNotPending
	}

	var row pgx.Row
	if params.Approve {
		row = tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE approvals
			SET status = 'approved',
			    approved_by = $2,
			    approved_at = $3,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING %s
		`, approvalColumns), params.ID, params.ActorID, params.DecidedAt)
	} else {
		row = tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE approvals
			SET status = 'rejected',
			    rejected_by = $2,
			    rejected_at = $3,
			    rejection_reason = $4,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING %s
		`, approvalColumns), params.ID, params.ActorID, params.DecidedAt, params.RejectionReason)
	}

	approval, err := scanApproval(row)
	if err != nil {
		return Approval{}, fmt.Errorf("decide approval: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return Approval{}, fmt.Errorf("commit decide tx: %w", err)
	}

	return approval, nil
}

type CancelApprovalResult struct {
	Approval Approval
	// FlagsCleared is true when this cancellation retired the turn's last
	// pending approval and both needs-approval flags were reset.
	FlagsCleared bool
	Turn         *Turn
}

// CancelApproval cancels a pending approval and, when no pending approvals
// remain for the turn, clears both turn-level needs-approval flags in the same
// transaction.
func (s *ApprovalStore) CancelApproval(ctx context.Context, id uuid.UUID, actorID string) (CancelApprovalResult, error) {
	if actorID == "" {
		return CancelApprovalResult{}, errors.New("actor id is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CancelApprovalResult{}, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := lockApproval(ctx, tx, id)
	if err != nil {
		return CancelApprovalResult{}, err
	}
	if current.Status != ApprovalStatusPending {
		return CancelApprovalResult{}, ErrApprovalNotPending
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE approvals
		SET status = 'cancelled',
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, approvalColumns), id)

	approval, err := scanApproval(row)
	if err != nil {
		return CancelApprovalResult{}, fmt.Errorf("cancel approval: %w", err)
	}

	var remaining int
	if err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM approvals
		WHERE turn_id = $1 AND status = 'pending'
	`, approval.TurnID).Scan(&remaining); err != nil {
		return CancelApprovalResult{}, fmt.Errorf("count pending approvals: %w", err)
	}

	result := CancelApprovalResult{Approval: approval}

	if remaining == 0 {
		turnRow := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE turns
			SET needs_dfo_approval = FALSE,
			    needs_ho_approval = FALSE,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING %s
		`, turnColumns), approval.TurnID)

		turn, scanErr := scanTurn(turnRow)
		if scanErr != nil {
			return CancelApprovalResult{}, fmt.Errorf("clear approval flags: %w", scanErr)
		}
		result.FlagsCleared = true
		result.Turn = &turn
	}

	if err = tx.Commit(ctx); err != nil {
		return CancelApprovalResult{}, fmt.Errorf("commit cancel tx: %w", err)
	}

	return result, nil
}

func lockApproval(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Approval, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM approvals WHERE id = $1 FOR UPDATE
	`, approvalColumns), id)

	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, ErrApprovalNotFound
		}
		return Approval{}, fmt.Errorf("lock approval: %w", err)
	}

	return approval, nil
}

func scanApproval(row pgx.Row) (Approval, error) {
	var (
		approval Approval
		amount   string
	)

	err := row.Scan(
		&approval.ID, &approval.TurnID, &approval.ApprovalType, &approval.Status,
		&approval.RequestedBy, &amount, &approval.Notes,
		&approval.ApprovedBy, &approval.ApprovedAt,
		&approval.RejectedBy, &approval.RejectedAt, &approval.RejectionReason,
		&approval.CreatedAt, &approval.UpdatedAt,
	)
	if err != nil {
		return Approval{}, err
	}

	if approval.Amount, err = parseDecimal(amount); err != nil {
		return Approval{}, err
	}

	return approval, nil
}
