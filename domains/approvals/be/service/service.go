package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainrepo "github.com/arunavo4/turns-management-sub001/domains/approvals/be/repo"
	"github.com/arunavo4/turns-management-sub001/platform/go/audit"
	"github.com/arunavo4/turns-management-sub001/platform/go/notify"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

// DecisionAction selects the outcome of a pending approval.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

const notifyTimeout = 10 * time.Second

// RequestInput asks the gate to raise whatever approvals the amount requires.
type RequestInput struct {
	TurnID uuid.UUID
	Amount decimal.Decimal
	Notes  *string
}

// RequestResult reports what the gate did. NoneNeeded is true when no
// thresholds fired or every required type was already pending; that outcome is
// an ordinary answer, never an error.
type RequestResult struct {
	Created    []persistence.Approval
	Turn       persistence.Turn
	NoneNeeded bool
}

// DecisionInput resolves a pending approval.
type DecisionInput struct {
	Action          DecisionAction
	RejectionReason *string
}

// Service is the approval gate: it creates, tracks and resolves per-turn
// approval requests and keeps the turn-level blocking flags consistent.
type Service interface {
	ResolveRequiredApprovals(ctx context.Context, amount decimal.Decimal) ([]persistence.ApprovalType, error)
	RequestApprovals(ctx context.Context, auditInfo requesttrace.AuditInfo, input RequestInput) (RequestResult, error)
	Decide(ctx context.Context, auditInfo requesttrace.AuditInfo, approvalID uuid.UUID, input DecisionInput) (persistence.Approval, error)
	Cancel(ctx context.Context, auditInfo requesttrace.AuditInfo, approvalID uuid.UUID) error
	Get(ctx context.Context, approvalID uuid.UUID) (persistence.Approval, error)
	ListForTurn(ctx context.Context, turnID uuid.UUID) ([]persistence.Approval, error)
}

type service struct {
	repo      domainrepo.Repository
	recorder  *audit.Recorder
	notifier  notify.Notifier
	directory notify.Directory
	logger    *zap.Logger
	now       func() time.Time
}

// New builds the approval gate Service.
func New(repo domainrepo.Repository, recorder *audit.Recorder, notifier notify.Notifier, directory notify.Directory, logger *zap.Logger) Service {
	if repo == nil {
		panic("approvals repository is required")
	}
	if recorder == nil {
		panic("audit recorder is required")
	}
	if notifier == nil {
		panic("notifier is required")
	}
	if directory == nil {
		panic("recipient directory is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &service{
		repo:      repo,
		recorder:  recorder,
		notifier:  notifier,
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) RequestApprovals(ctx context.Context, auditInfo requesttrace.AuditInfo, input RequestInput) (RequestResult, error) {
	if input.Amount.IsNegative() {
		return RequestResult{}, &ValidationError{Fields: FieldErrors{"amount": []string{"amount must not be negative"}}}
	}

	turn, err := s.repo.GetTurn(ctx, input.TurnID)
	if err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return RequestResult{}, ErrTurnNotFound
		}
		return RequestResult{}, err
	}

	required, err := s.ResolveRequiredApprovals(ctx, input.Amount)
	if err != nil {
		return RequestResult{}, err
	}

	if len(required) == 0 {
		return RequestResult{Turn: turn, NoneNeeded: true}, nil
	}

	requestedBy := auditInfo.ActorID()

	var created []persistence.Approval
	var createdTypes []persistence.ApprovalType
	for _, approvalType := range required {
		approval, inserted, createErr := s.repo.CreatePending(ctx, persistence.CreateApprovalParams{
			ID:           uuid.New(),
			TurnID:       input.TurnID,
			ApprovalType: approvalType,
			RequestedBy:  requestedBy,
			Amount:       input.Amount,
			Notes:        input.Notes,
		})
		if createErr != nil {
			return RequestResult{}, createErr
		}
		if !inserted {
			// An approval of this type is already pending; re-submission is a no-op.
			continue
		}
		created = append(created, approval)
		createdTypes = append(createdTypes, approvalType)
	}

	if len(created) == 0 {
		return RequestResult{Turn: turn, NoneNeeded: true}, nil
	}

	updatedTurn, err := s.repo.MarkApprovalsRequested(ctx, input.TurnID, createdTypes)
	if err != nil {
		return RequestResult{}, err
	}

	s.auditTurnUpdate(ctx, turn, updatedTurn, "approval requirements raised")
	for _, approval := range created {
		s.auditApproval(ctx, approval, persistence.AuditActionCreate, nil)
	}

	for _, approval := range created {
		s.notifyRequested(ctx, updatedTurn, approval)
	}

	return RequestResult{Created: created, Turn: updatedTurn}, nil
}

func (s *service) Decide(ctx context.Context, auditInfo requesttrace.AuditInfo, approvalID uuid.UUID, input DecisionInput) (persistence.Approval, error) {
	if validationErr := validateDecision(input); validationErr != nil {
		return persistence.Approval{}, validationErr
	}

	decided, err := s.repo.DecideApproval(ctx, persistence.DecideApprovalParams{
		ID:              approvalID,
		Approve:         input.Action == ActionApprove,
		ActorID:         auditInfo.ActorID(),
		RejectionReason: input.RejectionReason,
		DecidedAt:       s.now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrApprovalNotFound):
			return persistence.Approval{}, ErrNotFound
		case errors.Is(err, persistence.ErrApprovalNotPending):
			return persistence.Approval{}, &ValidationError{Fields: FieldErrors{"status": []string{"approval has already been resolved"}}}
		default:
			return persistence.Approval{}, err
		}
	}

	before, err := s.repo.GetTurn(ctx, decided.TurnID)
	if err != nil {
		// The approval is decided; losing the turn-flag follow-up write is a
		// server error the caller should see rather than silent drift.
		return persistence.Approval{}, err
	}

	var updatedTurn persistence.Turn
	if decided.Status == persistence.ApprovalStatusApproved {
		updatedTurn, err = s.repo.RecordApprovalGrant(ctx, decided.TurnID, decided.ApprovalType, auditInfo.ActorID(), *decided.ApprovedAt)
	} else {
		// Rejection stores the reason and leaves the blocking flag raised: the
		// turn stays parked until a human acts on the stored reason.
		updatedTurn, err = s.repo.RecordApprovalRejection(ctx, decided.TurnID, *decided.RejectionReason)
	}
	if err != nil {
		return persistence.Approval{}, err
	}

	action := persistence.AuditActionApprove
	if decided.Status == persistence.ApprovalStatusRejected {
		action = persistence.AuditActionReject
	}
	s.auditApproval(ctx, decided, action, nil)
	s.auditTurnUpdate(ctx, before, updatedTurn, "approval decision applied")

	s.notifyDecided(ctx, updatedTurn, decided)

	return decided, nil
}

func (s *service) Cancel(ctx context.Context, auditInfo requesttrace.AuditInfo, approvalID uuid.UUID) error {
	result, err := s.repo.CancelApproval(ctx, approvalID, auditInfo.ActorID())
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrApprovalNotFound):
			return ErrNotFound
		case errors.Is(err, persistence.ErrApprovalNotPending):
			return &ValidationError{Fields: FieldErrors{"status": []string{"only pending approvals can be cancelled"}}}
		default:
			return err
		}
	}

	s.auditApproval(ctx, result.Approval, persistence.AuditActionUpdate, map[string]any{"cancelled": true})
	if result.FlagsCleared && result.Turn != nil {
		s.recorder.Record(ctx, audit.Entry{
			TableName: persistence.TurnsTable,
			RecordID:  result.Turn.ID.String(),
			Action:    persistence.AuditActionUpdate,
			NewValues: map[string]any{"needsDfoApproval": false, "needsHoApproval": false},
			TurnID:    &result.Turn.ID,
			Context:   "last pending approval cancelled",
		})
	}

	return nil
}

func (s *service) Get(ctx context.Context, approvalID uuid.UUID) (persistence.Approval, error) {
	approval, err := s.repo.GetApproval(ctx, approvalID)
	if err != nil {
		if errors.Is(err, persistence.ErrApprovalNotFound) {
			return persistence.Approval{}, ErrNotFound
		}
		return persistence.Approval{}, err
	}
	return approval, nil
}

func (s *service) ListForTurn(ctx context.Context, turnID uuid.UUID) ([]persistence.Approval, error) {
	if _, err := s.repo.GetTurn(ctx, turnID); err != nil {
		if errors.Is(err, persistence.ErrTurnNotFound) {
			return nil, ErrTurnNotFound
		}
		return nil, err
	}
	return s.repo.ListForTurn(ctx, turnID)
}

func validateDecision(input DecisionInput) error {
	errs := FieldErrors{}

	switch input.Action {
	case ActionApprove:
	case ActionReject:
		if input.RejectionReason == nil || strings.TrimSpace(*input.RejectionReason) == "" {
			errs.add("rejectionReason", "rejection reason is required when rejecting")
		}
	default:
		errs.add("action", `action must be "approve" or "reject"`)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func (s *service) auditApproval(ctx context.Context, approval persistence.Approval, action persistence.AuditAction, metadata map[string]any) {
	snapshot, err := audit.Snapshot(approval)
	if err != nil {
		s.logger.Warn("snapshot approval for audit", zap.Error(err))
	}

	s.recorder.Record(ctx, audit.Entry{
		TableName: persistence.ApprovalsTable,
		RecordID:  approval.ID.String(),
		Action:    action,
		NewValues: snapshot,
		TurnID:    &approval.TurnID,
		Metadata:  metadata,
	})
}

func (s *service) auditTurnUpdate(ctx context.Context, before, after persistence.Turn, context string) {
	oldValues, err := audit.Snapshot(before)
	if err != nil {
		s.logger.Warn("snapshot turn for audit", zap.Error(err))
	}
	newValues, err := audit.Snapshot(after)
	if err != nil {
		s.logger.Warn("snapshot turn for audit", zap.Error(err))
	}

	s.recorder.Record(ctx, audit.Entry{
		TableName: persistence.TurnsTable,
		RecordID:  after.ID.String(),
		Action:    persistence.AuditActionUpdate,
		OldValues: oldValues,
		NewValues: newValues,
		TurnID:    &after.ID,
		Context:   context,
	})
}

func (s *service) notifyRequested(ctx context.Context, turn persistence.Turn, approval persistence.Approval) {
	recipient, ok := s.directory.ApproverFor(string(approval.ApprovalType))
	if !ok {
		s.logger.Warn("no approver recipient configured",
			zap.String("approval_type", string(approval.ApprovalType)))
		return
	}

	notes := ""
	if approval.Notes != nil {
		notes = *approval.Notes
	}

	note := notify.ApprovalRequestNote{
		TurnID: turn.ID,
		// Property lookup lives outside this service; the identifier is enough
		// for the approver to find the listing.
		PropertyAddress: turn.PropertyID.String(),
		TurnNumber:      turn.TurnNumber,
		ApprovalType:    string(approval.ApprovalType),
		Amount:          approval.Amount,
		Priority:        string(turn.Priority),
		RequestedBy:     approval.RequestedBy,
		Notes:           notes,
		Recipient:       recipient,
	}

	// Notify-and-forget: bounded, decoupled from the request lifetime, never retried.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.ApprovalRequested(notifyCtx, note); err != nil {
		s.logger.Warn("approval request notification failed",
			zap.String("approval_id", approval.ID.String()),
			zap.Error(err))
	}
}

func (s *service) notifyDecided(ctx context.Context, turn persistence.Turn, approval persistence.Approval) {
	recipient, ok := s.directory.UserByID(approval.RequestedBy)
	if !ok {
		return
	}

	approved := approval.Status == persistence.ApprovalStatusApproved
	decidedBy := ""
	comments := ""
	if approved {
		if approval.ApprovedBy != nil {
			decidedBy = *approval.ApprovedBy
		}
	} else {
		if approval.RejectedBy != nil {
			decidedBy = *approval.RejectedBy
		}
		if approval.RejectionReason != nil {
			comments = *approval.RejectionReason
		}
	}

	note := notify.ApprovalDecisionNote{
		TurnID:       turn.ID,
		TurnNumber:   turn.TurnNumber,
		ApprovalType: string(approval.ApprovalType),
		Approved:     approved,
		DecidedBy:    decidedBy,
		Comments:     comments,
		Recipient:    recipient,
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.ApprovalDecided(notifyCtx, note); err != nil {
		s.logger.Warn("approval decision notification failed",
			zap.String("approval_id", approval.ID.String()),
			zap.Error(err))
	}
}
