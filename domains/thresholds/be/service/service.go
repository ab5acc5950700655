package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainrepo "github.com/arunavo4/turns-management-sub001/domains/thresholds/be/repo"
	"github.com/arunavo4/turns-management-sub001/platform/go/audit"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

// CreateInput describes a new approval amount band. MaxAmount nil means the
// band is unbounded above; both bounds are inclusive.
type CreateInput struct {
	Name               string
	MinAmount          decimal.Decimal
	MaxAmount          *decimal.Decimal
	ApprovalType       persistence.ApprovalType
	RequiresSequential bool
}

// UpdateInput merges editable fields into an existing band. ClearMaxAmount
// removes the upper bound; it wins over MaxAmount when both are set.
type UpdateInput struct {
	Name               *string
	MinAmount          *decimal.Decimal
	MaxAmount          *decimal.Decimal
	ClearMaxAmount     bool
	ApprovalType       *persistence.ApprovalType
	RequiresSequential *bool
}

// Service administers the threshold configuration the approval resolver reads.
// Bands may overlap; each band fires independently during resolution.
type Service interface {
	List(ctx context.Context, activeOnly bool) ([]persistence.ApprovalThreshold, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.ApprovalThreshold, error)
	Create(ctx context.Context, auditInfo requesttrace.AuditInfo, input CreateInput) (persistence.ApprovalThreshold, error)
	Update(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (persistence.ApprovalThreshold, error)
	Deactivate(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID) error
}

type service struct {
	repo     domainrepo.Repository
	recorder *audit.Recorder
	logger   *zap.Logger
}

// New builds the threshold administration Service.
func New(repo domainrepo.Repository, recorder *audit.Recorder, logger *zap.Logger) Service {
	if repo == nil {
		panic("thresholds repository is required")
	}
	if recorder == nil {
		panic("audit recorder is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &service{repo: repo, recorder: recorder, logger: logger}
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]persistence.ApprovalThreshold, error) {
	return s.repo.ListThresholds(ctx, activeOnly)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (persistence.ApprovalThreshold, error) {
	threshold, err := s.repo.GetThreshold(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrThresholdNotFound) {
			return persistence.ApprovalThreshold{}, ErrNotFound
		}
		return persistence.ApprovalThreshold{}, err
	}
	return threshold, nil
}

func (s *service) Create(ctx context.Context, auditInfo requesttrace.AuditInfo, input CreateInput) (persistence.ApprovalThreshold, error) {
	if validationErr := validateBand(input.Name, input.MinAmount, input.MaxAmount, input.ApprovalType); validationErr != nil {
		return persistence.ApprovalThreshold{}, validationErr
	}

	threshold, err := s.repo.CreateThreshold(ctx, persistence.CreateThresholdParams{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(input.Name),
		MinAmount:          input.MinAmount,
		MaxAmount:          input.MaxAmount,
		ApprovalType:       input.ApprovalType,
		RequiresSequential: input.RequiresSequential,
	})
	if err != nil {
		return persistence.ApprovalThreshold{}, err
	}

	s.auditThreshold(ctx, nil, threshold, persistence.AuditActionCreate)

	return threshold, nil
}

func (s *service) Update(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (persistence.ApprovalThreshold, error) {
	if validationErr := validateUpdate(input); validationErr != nil {
		return persistence.ApprovalThreshold{}, validationErr
	}

	before, after, err := s.repo.UpdateThreshold(ctx, id, persistence.UpdateThresholdParams{
		Name:               input.Name,
		MinAmount:          input.MinAmount,
		MaxAmount:          input.MaxAmount,
		ClearMaxAmount:     input.ClearMaxAmount,
		ApprovalType:       input.ApprovalType,
		RequiresSequential: input.RequiresSequential,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrThresholdNotFound) {
			return persistence.ApprovalThreshold{}, ErrNotFound
		}
		return persistence.ApprovalThreshold{}, err
	}

	// The merged result must still be a coherent band.
	if after.MaxAmount != nil && after.MaxAmount.LessThan(after.MinAmount) {
		return persistence.ApprovalThreshold{}, &ValidationError{Fields: FieldErrors{
			"maxAmount": []string{"max amount must not be below min amount"},
		}}
	}

	s.auditThreshold(ctx, &before, after, persistence.AuditActionUpdate)

	return after, nil
}

func (s *service) Deactivate(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID) error {
	threshold, err := s.repo.DeactivateThreshold(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrThresholdNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.auditThreshold(ctx, nil, threshold, persistence.AuditActionDelete)

	return nil
}

func validateBand(name string, minAmount decimal.Decimal, maxAmount *decimal.Decimal, approvalType persistence.ApprovalType) error {
	errs := FieldErrors{}

	if strings.TrimSpace(name) == "" {
		errs.add("name", "name is required")
	}
	if minAmount.IsNegative() {
		errs.add("minAmount", "min amount must not be negative")
	}
	if maxAmount != nil && maxAmount.LessThan(minAmount) {
		errs.add("maxAmount", "max amount must not be below min amount")
	}
	if !persistence.ValidApprovalType(approvalType) {
		errs.add("approvalType", "unknown approval type")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateUpdate(input UpdateInput) error {
	errs := FieldErrors{}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		errs.add("name", "name must not be empty")
	}
	if input.MinAmount != nil && input.MinAmount.IsNegative() {
		errs.add("minAmount", "min amount must not be negative")
	}
	if input.ApprovalType != nil && !persistence.ValidApprovalType(*input.ApprovalType) {
		errs.add("approvalType", "unknown approval type")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func (s *service) auditThreshold(ctx context.Context, before *persistence.ApprovalThreshold, after persistence.ApprovalThreshold, action persistence.AuditAction) {
	var oldValues map[string]any
	if before != nil {
		snapshot, err := audit.Snapshot(*before)
		if err != nil {
			s.logger.Warn("snapshot threshold for audit", zap.Error(err))
		}
		oldValues = snapshot
	}

	newValues, err := audit.Snapshot(after)
	if err != nil {
		s.logger.Warn("snapshot threshold for audit", zap.Error(err))
	}

	s.recorder.Record(ctx, audit.Entry{
		TableName: persistence.ApprovalThresholdsTable,
		RecordID:  after.ID.String(),
		Action:    action,
		OldValues: oldValues,
		NewValues: newValues,
	})
}
