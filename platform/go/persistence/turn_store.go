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

const turnColumns = `
	id, turn_number, property_id, vendor_id, stage_id, status, priority,
	estimated_cost::text, actual_cost::text,
	needs_dfo_approval, dfo_approved_by, dfo_approved_at,
	needs_ho_approval, ho_approved_by, ho_approved_at,
	rejection_reason, stage_entered_at, created_at, updated_at`

// TurnStore persists turns, their stage history, and the turn-level approval flags.
type TurnStore struct {
	pool *pgxpool.Pool
}

func NewTurnStore(pool *pgxpool.Pool) (*TurnStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TurnStore{pool: pool}, nil
}

type CreateTurnParams struct {
	ID            uuid.UUID
	TurnNumber    string
	PropertyID    uuid.UUID
	VendorID      *uuid.UUID
	StageID       *uuid.UUID
	Status        TurnStatus
	Priority      TurnPriority
	EstimatedCost *decimal.Decimal
}

func (s *TurnStore) CreateTurn(ctx context.Context, params CreateTurnParams) (Turn, error) {
	if params.ID == uuid.Nil {
		return Turn{}, errors.New("turn id is required")
	}
	if params.TurnNumber == "" {
		return Turn{}, errors.New("turn number is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO turns (
			id, turn_number, property_id, vendor_id, stage_id, status, priority,
			estimated_cost, stage_entered_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8::numeric,
			CASE WHEN $5::uuid IS NULL THEN NULL ELSE NOW() END,
			NOW(), NOW()
		)
		RETURNING %s
	`, turnColumns),
		params.ID, params.TurnNumber, params.PropertyID, params.VendorID,
		params.StageID, params.Status, params.Priority,
		nullableDecimalArg(params.EstimatedCost))

	turn, err := scanTurn(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Turn{}, ErrTurnNumberConflict
		}
		return Turn{}, fmt.Errorf("insert turn: %w", err)
	}

	return turn, nil
}

func (s *TurnStore) GetTurn(ctx context.Context, id uuid.UUID) (Turn, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM turns WHERE id = $1
	`, turnColumns), id)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, ErrTurnNotFound
		}
		return Turn{}, err
	}

	return turn, nil
}

type ListTurnsParams struct {
	Status  *TurnStatus
	StageID *uuid.UUID
	Limit   int
	Offset  int
}

func (s *TurnStore) ListTurns(ctx context.Context, params ListTurnsParams) ([]Turn, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM turns
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR stage_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, turnColumns), params.Status, params.StageID, limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		turn, scanErr := scanTurn(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		turns = append(turns, turn)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}

type UpdateTurnParams struct {
	VendorID      *uuid.UUID
	Priority      *TurnPriority
	EstimatedCost *decimal.Decimal
	ActualCost    *decimal.Decimal
}

// UpdateTurn merges the provided fields under a row lock and returns the
// before and after images so callers can audit the change.
func (s *TurnStore) UpdateTurn(ctx context.Context, id uuid.UUID, params UpdateTurnParams) (Turn, Turn, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Turn{}, Turn{}, fmt.Errorf("begin update turn tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	before, err := lockTurn(ctx, tx, id)
	if err != nil {
		return Turn{}, Turn{}, err
	}

	vendorID := before.VendorID
	if params.VendorID != nil {
		vendorID = params.VendorID
	}
	priority := before.Priority
	if params.Priority != nil {
		priority = *params.Priority
	}
	estimated := before.EstimatedCost
	if params.EstimatedCost != nil {
		estimated = params.EstimatedCost
	}
	actual := before.ActualCost
	if params.ActualCost != nil {
		actual = params.ActualCost
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE turns
		SET vendor_id = $2,
		    priority = $3,
		    estimated_cost = $4::numeric,
		    actual_cost = $5::numeric,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, turnColumns), id, vendorID, priority, nullableDecimalArg(estimated), nullableDecimalArg(actual))

	after, err := scanTurn(row)
	if err != nil {
		return Turn{}, Turn{}, fmt.Errorf("update turn: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return Turn{}, Turn{}, fmt.Errorf("commit update turn tx: %w", err)
	}

	return before, after, nil
}

type TransitionTurnParams struct {
	TurnID    uuid.UUID
	ToStageID uuid.UUID
	ChangedBy string
	Reason    *string
	// NewStatus carries the stage's auto-status mapping; nil leaves the coarse status untouched.
	NewStatus *TurnStatus
}

type TransitionTurnResult struct {
	Before  Turn
	After   Turn
	History TurnStageHistory
}

// TransitionTurn performs the atomic core of a stage transition: it locks the
// turn row, computes the dwell time in the previous stage from the locked
// image, appends the history record, and updates the turn's stage pointer,
// stage-entry timestamp and (optionally) coarse status. History insert and
// turn update commit or roll back together. Concurrent transitions against
// the same turn serialize on the row lock, so each duration is derived from
// the committed predecessor rather than a stale read.
func (s *TurnStore) TransitionTurn(ctx context.Context, params TransitionTurnParams) (TransitionTurnResult, error) {
	if params.ChangedBy == "" {
		return TransitionTurnResult{}, errors.New("changed by is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransitionTurnResult{}, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	before, err := lockTurn(ctx, tx, params.TurnID)
	if err != nil {
		return TransitionTurnResult{}, err
	}

	now := time.Now().UTC()

	var durationMs *int64
	if before.StageEnteredAt != nil {
		ms := now.Sub(*before.StageEnteredAt).Milliseconds()
		durationMs = &ms
	}

	historyRow := tx.QueryRow(ctx, `
		INSERT INTO turn_stage_history (
			id, turn_id, from_stage_id, to_stage_id, changed_by, reason, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, turn_id, from_stage_id, to_stage_id, changed_by, reason, duration_ms, created_at
	`, uuid.New(), params.TurnID, before.StageID, params.ToStageID, params.ChangedBy, params.Reason, durationMs, now)

	history, err := scanTurnStageHistory(historyRow)
	if err != nil {
		return TransitionTurnResult{}, fmt.Errorf("insert stage history: %w", err)
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE turns
		SET stage_id = $2,
		    stage_entered_at = $3,
		    status = COALESCE($4::text, status),
		    updated_at = $3
		WHERE id = $1
		RETURNING %s
	`, turnColumns), params.TurnID, params.ToStageID, now, params.NewStatus)

	after, err := scanTurn(row)
	if err != nil {
		return TransitionTurnResult{}, fmt.Errorf("update turn stage: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return TransitionTurnResult{}, fmt.Errorf("commit transition tx: %w", err)
	}

	return TransitionTurnResult{Before: before, After: after, History: history}, nil
}

func (s *TurnStore) ListStageHistory(ctx context.Context, turnID uuid.UUID) ([]TurnStageHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, turn_id, from_stage_id, to_stage_id, changed_by, reason, duration_ms, created_at
		FROM turn_stage_history
		WHERE turn_id = $1
		ORDER BY created_at ASC
	`, turnID)
	if err != nil {
		return nil, fmt.Errorf("list stage history: %w", err)
	}
	defer rows.Close()

	var entries []TurnStageHistory
	for rows.Next() {
		entry, scanErr := scanTurnStageHistory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage history: %w", err)
	}

	return entries, nil
}

// MarkApprovalsRequested ORs the per-type needs-approval flags with the freshly
// requested types, keeping flags raised for approvals still pending from an
// earlier request.
func (s *TurnStore) MarkApprovalsRequested(ctx context.Context, turnID uuid.UUID, types []ApprovalType) (Turn, error) {
	needsDfo := false
	needsHo := false
	for _, t := range types {
		switch t {
		case ApprovalTypeDFO:
			needsDfo = true
		case ApprovalTypeHO:
			needsHo = true
		}
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE turns
		SET needs_dfo_approval = needs_dfo_approval OR $2,
		    needs_ho_approval = needs_ho_approval OR $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, turnColumns), turnID, needsDfo, needsHo)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, ErrTurnNotFound
		}
		return Turn{}, fmt.Errorf("mark approvals requested: %w", err)
	}

	return turn, nil
}

// RecordApprovalGrant clears the granted type's flag and stamps the approver on the turn.
func (s *TurnStore) RecordApprovalGrant(ctx context.Context, turnID uuid.UUID, approvalType ApprovalType, approvedBy string, approvedAt time.Time) (Turn, error) {
	var query string
	switch approvalType {
	case ApprovalTypeDFO:
		query = `
			UPDATE turns
			SET needs_dfo_approval = FALSE,
			    dfo_approved_by = $2,
			    dfo_approved_at = $3,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING ` + turnColumns
	case ApprovalTypeHO:
		query = `
			UPDATE turns
			SET needs_ho_approval = FALSE,
			    ho_approved_by = $2,
			    ho_approved_at = $3,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING ` + turnColumns
	default:
		return Turn{}, fmt.Errorf("unknown approval type %q", approvalType)
	}

	row := s.pool.QueryRow(ctx, query, turnID, approvedBy, approvedAt)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, ErrTurnNotFound
		}
		return Turn{}, fmt.Errorf("record approval grant: %w", err)
	}

	return turn, nil
}

// RecordApprovalRejection stores the rejection reason on the turn. The
// needs-approval flags are deliberately left untouched: a rejection parks the
// turn for a human decision instead of resolving the gate.
func (s *TurnStore) RecordApprovalRejection(ctx context.Context, turnID uuid.UUID, reason string) (Turn, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE turns
		SET rejection_reason = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, turnColumns), turnID, reason)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, ErrTurnNotFound
		}
		return Turn{}, fmt.Errorf("record approval rejection: %w", err)
	}

	return turn, nil
}

// NextTurnSequence pulls the next value from the shared turn-number sequence.
func (s *TurnStore) NextTurnSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('turn_number_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next turn sequence: %w", err)
	}
	return seq, nil
}

func lockTurn(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Turn, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM turns WHERE id = $1 FOR UPDATE
	`, turnColumns), id)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, ErrTurnNotFound
		}
		return Turn{}, fmt.Errorf("lock turn: %w", err)
	}

	return turn, nil
}

func scanTurn(row pgx.Row) (Turn, error) {
	var (
		turn          Turn
		estimatedCost *string
		actualCost    *string
	)

	err := row.Scan(
		&turn.ID, &turn.TurnNumber, &turn.PropertyID, &turn.VendorID, &turn.StageID,
		&turn.Status, &turn.Priority, &estimatedCost, &actualCost,
		&turn.NeedsDfoApproval, &turn.DfoApprovedBy, &turn.DfoApprovedAt,
		&turn.NeedsHoApproval, &turn.HoApprovedBy, &turn.HoApprovedAt,
		&turn.RejectionReason, &turn.StageEnteredAt, &turn.CreatedAt, &turn.UpdatedAt,
	)
	if err != nil {
		return Turn{}, err
	}

	if turn.EstimatedCost, err = parseNullableDecimal(estimatedCost); err != nil {
		return Turn{}, err
	}
	if turn.ActualCost, err = parseNullableDecimal(actualCost); err != nil {
		return Turn{}, err
	}

	return turn, nil
}

func scanTurnStageHistory(row pgx.Row) (TurnStageHistory, error) {
	var entry TurnStageHistory
	err := row.Scan(
		&entry.ID, &entry.TurnID, &entry.FromStageID, &entry.ToStageID,
		&entry.ChangedBy, &entry.Reason, &entry.DurationMs, &entry.CreatedAt,
	)
	if err != nil {
		return TurnStageHistory{}, err
	}
	return entry, nil
}
