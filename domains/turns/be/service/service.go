package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	approvalsvc "github.com/arunavo4/turns-management-sub001/domains/approvals/be/service"
	domainrepo "github.com/arunavo4/turns-management-sub001/domains/turns/be/repo"
	"github.com/arunavo4/turns-management-sub001/platform/go/audit"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

// CreateInput describes a new turn. StageID is optional; when nil the
// configured default stage is used.
type CreateInput struct {
	PropertyID    uuid.UUID
	VendorID      *uuid.UUID
	StageID       *uuid.UUID
	Priority      *persistence.TurnPriority
	EstimatedCost *decimal.Decimal
}

// UpdateInput merges editable fields into an existing turn. Nil fields are
// left as they are.
type UpdateInput struct {
	VendorID      *uuid.UUID
	Priority      *persistence.TurnPriority
	EstimatedCost *decimal.Decimal
	ActualCost    *decimal.Decimal
}

// TransitionInput moves a turn to another stage.
type TransitionInput struct {
	ToStageID uuid.UUID
	Reason    *string
}

// TransitionResult reports a completed stage transition. RequestedApprovals
// holds approvals raised as a side effect of entering a gated stage; the slice
// is empty when the stage needs none or when raising them failed, the
// transition itself stands either way.
type TransitionResult struct {
	Turn               persistence.Turn
	History            persistence.TurnStageHistory
	RequestedApprovals []persistence.Approval
}

// ListInput filters and pages the turn listing.
type ListInput struct {
	Status  *persistence.TurnStatus
	StageID *uuid.UUID
	Limit   int
	Offset  int
}

// Service is the turn workflow engine: turn lifecycle, stage transitions with
// dwell-time history, and the hand-off into the approval gate.
type Service interface {
	Create(ctx context.Context, auditInfo requesttrace.AuditInfo, input CreateInput) (persistence.Turn, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Turn, error)
	List(ctx context.Context, input ListInput) ([]persistence.Turn, error)
	Update(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (persistence.Turn, error)
	Transition(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input TransitionInput) (TransitionResult, error)
	ListHistory(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error)
	ListStages(ctx context.Context) ([]persistence.TurnStage, error)
}

type service struct {
	repo      domainrepo.Repository
	approvals approvalsvc.Service
	recorder  *audit.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// New builds the workflow engine Service.
func New(repo domainrepo.Repository, approvals approvalsvc.Service, recorder *audit.Recorder, logger *zap.Logger) Service {
	if repo == nil {
		panic("turns repository is required")
	}
	if approvals == nil {
		panic("approvals service is required")
	}
	if recorder == nil {
		panic("audit recorder is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &service{
		repo:      repo,
		approvals: approvals,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, auditInfo requesttrace.AuditInfo, input CreateInput) (persistence.Turn, error) {
	if validationErr := validateCreate(input); validationErr != nil {
		return persistence.Turn{}, validationErr
	}

	stageID := input.StageID
	if stageID == nil {
		defaultStage, err := s.repo.GetDefaultStage(ctx)
		if err != nil {
			if errors.Is(err, persistence.ErrStageNotFound) {
				return persistence.Turn{}, ErrNoDefaultStage
			}
			return persistence.Turn{}, err
		}
		stageID = &defaultStage.ID
	} else if _, err := s.repo.GetStage(ctx, *stageID); err != nil {
		if errors.Is(err, persistence.ErrStageNotFound) {
			return persistence.Turn{}, ErrStageNotFound
		}
		return persistence.Turn{}, err
	}

	number, err := s.nextTurnNumber(ctx)
	if err != nil {
		return persistence.Turn{}, err
	}

	priority := persistence.TurnPriorityMedium
	if input.Priority != nil {
		priority = *input.Priority
	}

	turn, err := s.repo.CreateTurn(ctx, persistence.CreateTurnParams{
		ID:            uuid.New(),
		TurnNumber:    number,
		PropertyID:    input.PropertyID,
		VendorID:      input.VendorID,
		StageID:       stageID,
		Status:        persistence.TurnStatusDraft,
		Priority:      priority,
		EstimatedCost: input.EstimatedCost,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrTurnNumberConflict) {
			return persistence.Turn{}, ErrNumberExhausted
		}
		return persistence.Turn{}, err
	}

	s.auditTurn(ctx, turn, persistence.AuditActionCreate, nil, "turn created")

	return turn, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (persistence.Turn, error) {
	turn, err := s.repo.GetTurn(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return persistence.Turn{}, ErrNotFound
		}
		return persistence.Turn{}, err
	}
	return turn, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]persistence.Turn, error) {
	if input.Status != nil && !persistence.ValidTurnStatus(*input.Status) {
		return nil, &ValidationError{Fields: FieldErrors{"status": []string{"unknown status"}}}
	}

	return s.repo.ListTurns(ctx, persistence.ListTurnsParams{
		Status:  input.Status,
		StageID: input.StageID,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
}

func (s *service) Update(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (persistence.Turn, error) {
	if validationErr := validateUpdate(input); validationErr != nil {
		return persistence.Turn{}, validationErr
	}

	before, after, err := s.repo.UpdateTurn(ctx, id, persistence.UpdateTurnParams{
		VendorID:      input.VendorID,
		Priority:      input.Priority,
		EstimatedCost: input.EstimatedCost,
		ActualCost:    input.ActualCost,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return persistence.Turn{}, ErrNotFound
		}
		return persistence.Turn{}, err
	}

	s.auditTurnChange(ctx, before, after, persistence.AuditActionUpdate, "turn updated")

	return after, nil
}

// Transition moves a turn into another stage. The history append and the turn
// update are atomic; entering a stage that carries an auto-status tag also
// rewrites the coarse status. When the target stage requires approval and the
// turn carries an estimated cost, the approval gate is invoked afterwards on a
// best-effort basis: a gate failure is logged and the completed transition is
// still returned.
func (s *service) Transition(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input TransitionInput) (TransitionResult, error) {
	stage, err := s.repo.GetStage(ctx, input.ToStageID)
	if err != nil {
		if errors.Is(err, persistence.ErrStageNotFound) {
			return TransitionResult{}, ErrStageNotFound
		}
		return TransitionResult{}, err
	}

	turn, err := s.repo.GetTurn(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return TransitionResult{}, ErrNotFound
		}
		return TransitionResult{}, err
	}

	if validationErr := validateStageEntry(stage, turn); validationErr != nil {
		return TransitionResult{}, validationErr
	}

	result, err := s.repo.TransitionTurn(ctx, persistence.TransitionTurnParams{
		TurnID:    id,
		ToStageID: stage.ID,
		ChangedBy: auditInfo.ActorID(),
		Reason:    input.Reason,
		NewStatus: statusForStage(stage),
	})
	if err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return TransitionResult{}, ErrNotFound
		}
		return TransitionResult{}, err
	}

	action := persistence.AuditActionUpdate
	if stage.IsFinal {
		action = persistence.AuditActionComplete
	}
	s.auditTurnChange(ctx, result.Before, result.After, action, fmt.Sprintf("stage transition to %s", stage.Name))

	requested := s.requestStageApprovals(ctx, auditInfo, stage, result.After)

	return TransitionResult{
		Turn:               result.After,
		History:            result.History,
		RequestedApprovals: requested,
	}, nil
}

func (s *service) ListHistory(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error) {
	if _, err := s.repo.GetTurn(ctx, turnID); err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.repo.ListStageHistory(ctx, turnID)
}

func (s *service) ListStages(ctx context.Context) ([]persistence.TurnStage, error) {
	return s.repo.ListStages(ctx, false)
}

// requestStageApprovals raises threshold approvals on entry to a gated stage.
// Failures never surface to the caller: the transition already committed, and
// the gate can be re-run explicitly through the approvals API.
func (s *service) requestStageApprovals(ctx context.Context, auditInfo requesttrace.AuditInfo, stage persistence.TurnStage, turn persistence.Turn) []persistence.Approval {
	if !stage.RequiresApproval || turn.EstimatedCost == nil {
		return nil
	}

	notes := fmt.Sprintf("Stage transition to %s", stage.Name)
	result, err := s.approvals.RequestApprovals(ctx, auditInfo, approvalsvc.RequestInput{
		TurnID: turn.ID,
		Amount: *turn.EstimatedCost,
		Notes:  &notes,
	})
	if err != nil {
		s.logger.Warn("approval request after stage transition failed",
			zap.String("turn_id", turn.ID.String()),
			zap.String("stage", stage.Key),
			zap.Error(err))
		return nil
	}

	return result.Created
}

func (s *service) nextTurnNumber(ctx context.Context) (string, error) {
	seq, err := s.repo.NextTurnSequence(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TURN-%d-%05d", s.now().UTC().Year(), seq), nil
}

func validateCreate(input CreateInput) error {
	errs := FieldErrors{}

	if input.PropertyID == uuid.Nil {
		errs.add("propertyId", "property id is required")
	}
	if input.Priority != nil && !persistence.ValidTurnPriority(*input.Priority) {
		errs.add("priority", "unknown priority")
	}
	if input.EstimatedCost != nil && input.EstimatedCost.IsNegative() {
		errs.add("estimatedCost", "estimated cost must not be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateUpdate(input UpdateInput) error {
	errs := FieldErrors{}

	if input.Priority != nil && !persistence.ValidTurnPriority(*input.Priority) {
		errs.add("priority", "unknown priority")
	}
	if input.EstimatedCost != nil && input.EstimatedCost.IsNegative() {
		errs.add("estimatedCost", "estimated cost must not be negative")
	}
	if input.ActualCost != nil && input.ActualCost.IsNegative() {
		errs.add("actualCost", "actual cost must not be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateStageEntry(stage persistence.TurnStage, turn persistence.Turn) error {
	errs := FieldErrors{}

	if stage.RequiresVendor && turn.VendorID == nil {
		errs.add("toStageId", fmt.Sprintf("stage %s requires a vendor to be assigned", stage.Key))
	}
	if stage.RequiresAmount && turn.EstimatedCost == nil {
		errs.add("toStageId", fmt.Sprintf("stage %s requires an estimated cost", stage.Key))
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func (s *service) auditTurn(ctx context.Context, turn persistence.Turn, action persistence.AuditAction, metadata map[string]any, context string) {
	snapshot, err := audit.Snapshot(turn)
	if err != nil {
		s.logger.Warn("snapshot turn for audit", zap.Error(err))
	}

	s.recorder.Record(ctx, audit.Entry{
		TableName:  persistence.TurnsTable,
		RecordID:   turn.ID.String(),
		Action:     action,
		NewValues:  snapshot,
		TurnID:     &turn.ID,
		PropertyID: &turn.PropertyID,
		Metadata:   metadata,
		Context:    context,
	})
}

func (s *service) auditTurnChange(ctx context.Context, before, after persistence.Turn, action persistence.AuditAction, context string) {
	oldValues, err := audit.Snapshot(before)
	if err != nil {
		s.logger.Warn("snapshot turn for audit", zap.Error(err))
	}
	newValues, err := audit.Snapshot(after)
	if err != nil {
		s.logger.Warn("snapshot turn for audit", zap.Error(err))
	}

	s.recorder.Record(ctx, audit.Entry{
		TableName:  persistence.TurnsTable,
		RecordID:   after.ID.String(),
		Action:     action,
		OldValues:  oldValues,
		NewValues:  newValues,
		TurnID:     &after.ID,
		PropertyID: &after.PropertyID,
		Context:    context,
	})
}
