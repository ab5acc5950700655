package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	approvalsvc "github.com/arunavo4/turns-management-sub001/domains/approvals/be/service"
	"github.com/arunavo4/turns-management-sub001/platform/go/audit"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

type mockRepository struct {
	createTurnFn     func(ctx context.Context, params persistence.CreateTurnParams) (persistence.Turn, error)
	getTurnFn        func(ctx context.Context, id uuid.UUID) (persistence.Turn, error)
	listTurnsFn      func(ctx context.Context, params persistence.ListTurnsParams) ([]persistence.Turn, error)
	updateTurnFn     func(ctx context.Context, id uuid.UUID, params persistence.UpdateTurnParams) (persistence.Turn, persistence.Turn, error)
	transitionFn     func(ctx context.Context, params persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error)
	listHistoryFn    func(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error)
	nextSequenceFn   func(ctx context.Context) (int64, error)
	getStageFn       func(ctx context.Context, id uuid.UUID) (persistence.TurnStage, error)
	getDefaultFn     func(ctx context.Context) (persistence.TurnStage, error)
	listStagesFn     func(ctx context.Context, includeInactive bool) ([]persistence.TurnStage, error)
}

func (m *mockRepository) CreateTurn(ctx context.Context, params persistence.CreateTurnParams) (persistence.Turn, error) {
	if m.createTurnFn == nil {
		panic("createTurnFn not configured")
	}
	return m.createTurnFn(ctx, params)
}

func (m *mockRepository) GetTurn(ctx context.Context, id uuid.UUID) (persistence.Turn, error) {
	if m.getTurnFn == nil {
		panic("getTurnFn not configured")
	}
	return m.getTurnFn(ctx, id)
}

func (m *mockRepository) ListTurns(ctx context.Context, params persistence.ListTurnsParams) ([]persistence.Turn, error) {
	if m.listTurnsFn == nil {
		panic("listTurnsFn not configured")
	}
	return m.listTurnsFn(ctx, params)
}

func (m *mockRepository) UpdateTurn(ctx context.Context, id uuid.UUID, params persistence.UpdateTurnParams) (persistence.Turn, persistence.Turn, error) {
	if m.updateTurnFn == nil {
		panic("updateTurnFn not configured")
	}
	return m.updateTurnFn(ctx, id, params)
}

func (m *mockRepository) TransitionTurn(ctx context.Context, params persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error) {
	if m.transitionFn == nil {
		panic("transitionFn not configured")
	}
	return m.transitionFn(ctx, params)
}

func (m *mockRepository) ListStageHistory(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error) {
	if m.listHistoryFn == nil {
		panic("listHistoryFn not configured")
	}
	return m.listHistoryFn(ctx, turnID)
}

func (m *mockRepository) NextTurnSequence(ctx context.Context) (int64, error) {
	if m.nextSequenceFn == nil {
		panic("nextSequenceFn not configured")
	}
	return m.nextSequenceFn(ctx)
}

func (m *mockRepository) GetStage(ctx context.Context, id uuid.UUID) (persistence.TurnStage, error) {
	if m.getStageFn == nil {
		panic("getStageFn not configured")
	}
	return m.getStageFn(ctx, id)
}

func (m *mockRepository) GetDefaultStage(ctx context.Context) (persistence.TurnStage, error) {
	if m.getDefaultFn == nil {
		panic("getDefaultFn not configured")
	}
	return m.getDefaultFn(ctx)
}

func (m *mockRepository) ListStages(ctx context.Context, includeInactive bool) ([]persistence.TurnStage, error) {
	if m.listStagesFn == nil {
		panic("listStagesFn not configured")
	}
	return m.listStagesFn(ctx, includeInactive)
}

type mockApprovals struct {
	requestFn func(ctx context.Context, auditInfo requesttrace.AuditInfo, input approvalsvc.RequestInput) (approvalsvc.RequestResult, error)
}

func (m *mockApprovals) ResolveRequiredApprovals(_ context.Context, _ decimal.Decimal) ([]persistence.ApprovalType, error) {
	panic("not expected")
}

func (m *mockApprovals) RequestApprovals(ctx context.Context, auditInfo requesttrace.AuditInfo, input approvalsvc.RequestInput) (approvalsvc.RequestResult, error) {
	if m.requestFn == nil {
		panic("requestFn not configured")
	}
	return m.requestFn(ctx, auditInfo, input)
}

func (m *mockApprovals) Decide(_ context.Context, _ requesttrace.AuditInfo, _ uuid.UUID, _ approvalsvc.DecisionInput) (persistence.Approval, error) {
	panic("not expected")
}

func (m *mockApprovals) Cancel(_ context.Context, _ requesttrace.AuditInfo, _ uuid.UUID) error {
	panic("not expected")
}

func (m *mockApprovals) Get(_ context.Context, _ uuid.UUID) (persistence.Approval, error) {
	panic("not expected")
}

func (m *mockApprovals) ListForTurn(_ context.Context, _ uuid.UUID) ([]persistence.Approval, error) {
	panic("not expected")
}

type capturingAuditStore struct {
	mu      sync.Mutex
	entries []persistence.AuditLog
}

func (s *capturingAuditStore) InsertAuditLog(_ context.Context, entry persistence.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func newTestService(repo *mockRepository, approvals *mockApprovals) (Service, *capturingAuditStore) {
	store := &capturingAuditStore{}
	recorder := audit.NewRecorder(store, zap.NewNop())
	if approvals == nil {
		approvals = &mockApprovals{}
	}
	return New(repo, approvals, recorder, zap.NewNop()), store
}

func userAudit(id string) requesttrace.AuditInfo {
	return requesttrace.AuditInfo{ActorKind: requesttrace.ActorKindUser, UserID: &id}
}

func stagePtr(s persistence.AutoStatus) *persistence.AutoStatus { return &s }

func TestStatusForStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  *persistence.AutoStatus
		want *persistence.TurnStatus
	}{
		{name: "no tag leaves status", tag: nil, want: nil},
		{name: "draft", tag: stagePtr(persistence.AutoStatusDraft), want: statusPtr(persistence.TurnStatusDraft)},
		{name: "active maps to in progress", tag: stagePtr(persistence.AutoStatusActive), want: statusPtr(persistence.TurnStatusInProgress)},
		{name: "pending maps to on hold", tag: stagePtr(persistence.AutoStatusPending), want: statusPtr(persistence.TurnStatusOnHold)},
		{name: "on hold", tag: stagePtr(persistence.AutoStatusOnHold), want: statusPtr(persistence.TurnStatusOnHold)},
		{name: "completed", tag: stagePtr(persistence.AutoStatusCompleted), want: statusPtr(persistence.TurnStatusComplete)},
		{name: "cancelled", tag: stagePtr(persistence.AutoStatusCancelled), want: statusPtr(persistence.TurnStatusCancelled)},
		{name: "unknown tag leaves status", tag: stagePtr(persistence.AutoStatus("ARCHIVED")), want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := statusForStage(persistence.TurnStage{AutoStatus: tc.tag})
			require.Equal(t, tc.want, got)
		})
	}
}

func statusPtr(s persistence.TurnStatus) *persistence.TurnStatus { return &s }

func TestCreateUsesDefaultStageAndNumber(t *testing.T) {
	t.Parallel()

	defaultStageID := uuid.New()
	repo := &mockRepository{
		getDefaultFn: func(_ context.Context) (persistence.TurnStage, error) {
			return persistence.TurnStage{ID: defaultStageID, Key: "draft", IsDefault: true}, nil
		},
		nextSequenceFn: func(_ context.Context) (int64, error) {
			return 42, nil
		},
		createTurnFn: func(_ context.Context, params persistence.CreateTurnParams) (persistence.Turn, error) {
			require.Equal(t, persistence.TurnStatusDraft, params.Status)
			require.Equal(t, persistence.TurnPriorityMedium, params.Priority)
			require.NotNil(t, params.StageID)
			require.Equal(t, defaultStageID, *params.StageID)
			require.True(t, strings.HasPrefix(params.TurnNumber, "TURN-"))
			require.True(t, strings.HasSuffix(params.TurnNumber, "-00042"))
			return persistence.Turn{
				ID:         params.ID,
				TurnNumber: params.TurnNumber,
				PropertyID: params.PropertyID,
				StageID:    params.StageID,
				Status:     params.Status,
				Priority:   params.Priority,
			}, nil
		},
	}
	svc, store := newTestService(repo, nil)

	turn, err := svc.Create(context.Background(), userAudit("u1"), CreateInput{
		PropertyID: uuid.New(),
	})

	require.NoError(t, err)
	require.Equal(t, persistence.TurnStatusDraft, turn.Status)
	require.Len(t, store.entries, 1)
	require.Equal(t, persistence.AuditActionCreate, store.entries[0].Action)
}

func TestCreateRequiresProperty(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&mockRepository{}, nil)

	_, err := svc.Create(context.Background(), userAudit("u1"), CreateInput{})

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "propertyId")
}

func TestCreateNoDefaultStage(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getDefaultFn: func(_ context.Context) (persistence.TurnStage, error) {
			return persistence.TurnStage{}, persistence.ErrStageNotFound
		},
	}
	svc, _ := newTestService(repo, nil)

	_, err := svc.Create(context.Background(), userAudit("u1"), CreateInput{PropertyID: uuid.New()})
	require.ErrorIs(t, err, ErrNoDefaultStage)
}

func TestTransitionRecordsHistoryAndStatus(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	stageID := uuid.New()
	fromStageID := uuid.New()
	durationMs := int64(3_600_000)

	repo := &mockRepository{
		getStageFn: func(_ context.Context, id uuid.UUID) (persistence.TurnStage, error) {
			return persistence.TurnStage{
				ID:         id,
				Name:       "In Progress",
				Key:        "in_progress",
				AutoStatus: stagePtr(persistence.AutoStatusActive),
				IsActive:   true,
			}, nil
		},
		getTurnFn: func(_ context.Context, id uuid.UUID) (persistence.Turn, error) {
			vendorID := uuid.New()
			return persistence.Turn{ID: id, StageID: &fromStageID, VendorID: &vendorID}, nil
		},
		transitionFn: func(_ context.Context, params persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error) {
			require.Equal(t, turnID, params.TurnID)
			require.Equal(t, stageID, params.ToStageID)
			require.Equal(t, "u1", params.ChangedBy)
			require.NotNil(t, params.NewStatus)
			require.Equal(t, persistence.TurnStatusInProgress, *params.NewStatus)

			return persistence.TransitionTurnResult{
				Before: persistence.Turn{ID: turnID, StageID: &fromStageID, Status: persistence.TurnStatusDraft},
				After:  persistence.Turn{ID: turnID, StageID: &stageID, Status: persistence.TurnStatusInProgress},
				History: persistence.TurnStageHistory{
					TurnID:      turnID,
					FromStageID: &fromStageID,
					ToStageID:   stageID,
					ChangedBy:   "u1",
					DurationMs:  &durationMs,
				},
			}, nil
		},
	}
	svc, store := newTestService(repo, nil)

	result, err := svc.Transition(context.Background(), userAudit("u1"), turnID, TransitionInput{ToStageID: stageID})

	require.NoError(t, err)
	require.Equal(t, persistence.TurnStatusInProgress, result.Turn.Status)
	require.NotNil(t, result.History.DurationMs)
	require.Equal(t, durationMs, *result.History.DurationMs)
	require.Empty(t, result.RequestedApprovals)

	require.Len(t, store.entries, 1)
	require.Equal(t, persistence.AuditActionUpdate, store.entries[0].Action)
	require.Contains(t, store.entries[0].ChangedFields, "status")
	require.Contains(t, store.entries[0].ChangedFields, "stageId")
}

func TestTransitionToGatedStageRequestsApprovals(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	stageID := uuid.New()
	cost := decimal.RequireFromString("15000")

	repo := &mockRepository{
		getStageFn: func(_ context.Context, id uuid.UUID) (persistence.TurnStage, error) {
			return persistence.TurnStage{
				ID:               id,
				Name:             "Approval",
				Key:              "approval",
				RequiresApproval: true,
				AutoStatus:       stagePtr(persistence.AutoStatusPending),
				IsActive:         true,
			}, nil
		},
		getTurnFn: func(_ context.Context, id uuid.UUID) (persistence.Turn, error) {
			return persistence.Turn{ID: id, EstimatedCost: &cost}, nil
		},
		transitionFn: func(_ context.Context, params persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error) {
			return persistence.TransitionTurnResult{
				Before: persistence.Turn{ID: turnID},
				After:  persistence.Turn{ID: turnID, StageID: &stageID, Status: persistence.TurnStatusOnHold, EstimatedCost: &cost},
			}, nil
		},
	}

	approvals := &mockApprovals{
		requestFn: func(_ context.Context, auditInfo requesttrace.AuditInfo, input approvalsvc.RequestInput) (approvalsvc.RequestResult, error) {
			require.Equal(t, turnID, input.TurnID)
			require.True(t, input.Amount.Equal(cost))
			require.NotNil(t, input.Notes)
			require.Equal(t, "Stage transition to Approval", *input.Notes)
			require.Equal(t, "u1", auditInfo.ActorID())

			return approvalsvc.RequestResult{
				Created: []persistence.Approval{{
					ID:           uuid.New(),
					TurnID:       turnID,
					ApprovalType: persistence.ApprovalTypeDFO,
					Status:       persistence.ApprovalStatusPending,
				}},
			}, nil
		},
	}
	svc, _ := newTestService(repo, approvals)

	result, err := svc.Transition(context.Background(), userAudit("u1"), turnID, TransitionInput{ToStageID: stageID})

	require.NoError(t, err)
	require.Len(t, result.RequestedApprovals, 1)
	require.Equal(t, persistence.ApprovalTypeDFO, result.RequestedApprovals[0].ApprovalType)
}

func TestTransitionSurvivesApprovalGateFailure(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	stageID := uuid.New()
	cost := decimal.RequireFromString("5000")

	repo := &mockRepository{
		getStageFn: func(_ context.Context, id uuid.UUID) (persistence.TurnStage, error) {
			return persistence.TurnStage{ID: id, Name: "Approval", Key: "approval", RequiresApproval: true, IsActive: true}, nil
		},
		getTurnFn: func(_ context.Context, id uuid.UUID) (persistence.Turn, error) {
			return persistence.Turn{ID: id, EstimatedCost: &cost}, nil
		},
		transitionFn: func(_ context.Context, _ persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error) {
			return persistence.TransitionTurnResult{
				Before: persistence.Turn{ID: turnID},
				After:  persistence.Turn{ID: turnID, StageID: &stageID, EstimatedCost: &cost},
			}, nil
		},
	}
	approvals := &mockApprovals{
		requestFn: func(_ context.Context, _ requesttrace.AuditInfo, _ approvalsvc.RequestInput) (approvalsvc.RequestResult, error) {
			return approvalsvc.RequestResult{}, errors.New("thresholds unavailable")
		},
	}
	svc, _ := newTestService(repo, approvals)

	result, err := svc.Transition(context.Background(), userAudit("u1"), turnID, TransitionInput{ToStageID: stageID})

	require.NoError(t, err)
	require.Equal(t, turnID, result.Turn.ID)
	require.Empty(t, result.RequestedApprovals)
}

func TestTransitionSkipsGateWithoutEstimatedCost(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	stageID := uuid.New()

	repo := &mockRepository{
		getStageFn: func(_ context.Context, id uuid.UUID) (persistence.TurnStage, error) {
			return persistence.TurnStage{ID: id, Name: "Approval", Key: "approval", RequiresApproval: true, IsActive: true}, nil
		},
		getTurnFn: func(_ context.Context, id uuid.UUID) (persistence.Turn, error) {
			return persistence.Turn{ID: id}, nil
		},
		transitionFn: func(_ context.Context, _ persistence.TransitionTurnParams) (persistence.TransitionTurnResult, error) {
			return persistence.TransitionTurnResult{
				Before: persistence.Turn{ID: turnID},
				After:  persistence.Turn{ID: turnID, StageID: &stageID},
			}, nil
		},
	}
	// No requestFn configured: invoking the gate would panic the test.
	svc, _ := newTestService(repo, &mockApprovals{})

	result, err := svc.Transition(context.Background(), userAudit("u1"), turnID, TransitionInput{ToStageID: stageID})

	require.NoError(t, err)
	require.Empty(t, result.RequestedApprovals)
}

func TestTransitionRejectsMissingVendor(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getStageFn: func(_ context.Context, id uuid.UUID) (persistence.TurnStage, error) {
			return persistence.TurnStage{ID: id, Key: "in_progress", RequiresVendor: true, IsActive: true}, nil
		},
		getTurnFn: func(_ context.Context, id uuid.UUID) (persistence.Turn, error) {
			return persistence.Turn{ID: id}, nil
		},
	}
	svc, _ := newTestService(repo, nil)

	_, err := svc.Transition(context.Background(), userAudit("u1"), uuid.New(), TransitionInput{ToStageID: uuid.New()})

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "toStageId")
}

func TestTransitionUnknownStage(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getStageFn: func(_ context.Context, _ uuid.UUID) (persistence.TurnStage, error) {
			return persistence.TurnStage{}, persistence.ErrStageNotFound
		},
	}
	svc, _ := newTestService(repo, nil)

	_, err := svc.Transition(context.Background(), userAudit("u1"), uuid.New(), TransitionInput{ToStageID: uuid.New()})
	require.ErrorIs(t, err, ErrStageNotFound)
}

func TestUpdateValidatesNegativeCosts(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(&mockRepository{}, nil)

	negative := decimal.RequireFromString("-10")
	_, err := svc.Update(context.Background(), userAudit("u1"), uuid.New(), UpdateInput{
		EstimatedCost: &negative,
	})

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Contains(t, validationErr.Fields, "estimatedCost")
}

func TestListHistoryUnknownTurn(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		getTurnFn: func(_ context.Context, _ uuid.UUID) (persistence.Turn, error) {
			return persistence.Turn{}, persistence.ErrTurnNotFound
		},
	}
	svc, _ := newTestService(repo, nil)

	_, err := svc.ListHistory(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
