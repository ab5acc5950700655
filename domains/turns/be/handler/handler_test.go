package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arunavo4/turns-management-sub001/domains/turns/be/service"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/problemdetails"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

type mockService struct {
	createFn      func(ctx context.Context, auditInfo requesttrace.AuditInfo, input service.CreateInput) (persistence.Turn, error)
	getFn         func(ctx context.Context, id uuid.UUID) (persistence.Turn, error)
	listFn        func(ctx context.Context, input service.ListInput) ([]persistence.Turn, error)
	updateFn      func(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (persistence.Turn, error)
	transitionFn  func(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input service.TransitionInput) (service.TransitionResult, error)
	listHistoryFn func(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error)
	listStagesFn  func(ctx context.Context) ([]persistence.TurnStage, error)
}

func (m *mockService) Create(ctx context.Context, auditInfo requesttrace.AuditInfo, input service.CreateInput) (persistence.Turn, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, auditInfo, input)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (persistence.Turn, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) List(ctx context.Context, input service.ListInput) ([]persistence.Turn, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, input)
}

func (m *mockService) Update(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (persistence.Turn, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, auditInfo, id, input)
}

func (m *mockService) Transition(ctx context.Context, auditInfo requesttrace.AuditInfo, id uuid.UUID, input service.TransitionInput) (service.TransitionResult, error) {
	if m.transitionFn == nil {
		panic("transitionFn not configured")
	}
	return m.transitionFn(ctx, auditInfo, id, input)
}

func (m *mockService) ListHistory(ctx context.Context, turnID uuid.UUID) ([]persistence.TurnStageHistory, error) {
	if m.listHistoryFn == nil {
		panic("listHistoryFn not configured")
	}
	return m.listHistoryFn(ctx, turnID)
}

func (m *mockService) ListStages(ctx context.Context) ([]persistence.TurnStage, error) {
	if m.listStagesFn == nil {
		panic("listStagesFn not configured")
	}
	return m.listStagesFn(ctx)
}

func newTestRouter(t *testing.T, svc *mockService) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	New(svc, zaptest.NewLogger(t)).Register(r)
	return r
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problemdetails.ProblemDetails {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem problemdetails.ProblemDetails
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	return problem
}

func TestHandlerCreateTurn(t *testing.T) {
	t.Parallel()

	propertyID := uuid.New()
	svc := &mockService{
		createFn: func(_ context.Context, _ requesttrace.AuditInfo, input service.CreateInput) (persistence.Turn, error) {
			require.Equal(t, propertyID, input.PropertyID)
			require.NotNil(t, input.Priority)
			require.Equal(t, persistence.TurnPriorityHigh, *input.Priority)
			return persistence.Turn{
				ID:         uuid.New(),
				TurnNumber: "TURN-2026-00007",
				PropertyID: input.PropertyID,
				Status:     persistence.TurnStatusDraft,
				Priority:   *input.Priority,
				CreatedAt:  time.Now().UTC(),
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	body := `{"propertyId":"` + propertyID.String() + `","priority":"high"}`
	req := httptest.NewRequest(http.MethodPost, "/turns", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/v1/turns/"))

	var turn persistence.Turn
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&turn))
	require.Equal(t, "TURN-2026-00007", turn.TurnNumber)
}

func TestHandlerCreateTurnMissingProperty(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/turns", strings.NewReader(`{"priority":"high"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.NotNil(t, problem.Errors)
	require.Contains(t, *problem.Errors, "propertyId")
}

func TestHandlerCreateTurnUnknownField(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/turns", strings.NewReader(`{"propertyId":"`+uuid.NewString()+`","color":"red"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGetTurnNotFound(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		getFn: func(_ context.Context, _ uuid.UUID) (persistence.Turn, error) {
			return persistence.Turn{}, service.ErrNotFound
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/turns/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	problem := decodeProblem(t, rec)
	require.Equal(t, "Resource not found", problem.Title)
}

func TestHandlerGetTurnBadUUID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodGet, "/turns/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListTurnsFiltersAndPages(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(_ context.Context, input service.ListInput) ([]persistence.Turn, error) {
			require.NotNil(t, input.Status)
			require.Equal(t, persistence.TurnStatusInProgress, *input.Status)
			require.Equal(t, 10, input.Limit)
			require.Equal(t, 20, input.Offset)
			return nil, nil
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/turns?status=in_progress&limit=10&offset=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Items []persistence.Turn `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.NotNil(t, listing.Items)
	require.Empty(t, listing.Items)
}

func TestHandlerTransitionTurn(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	stageID := uuid.New()
	cost := decimal.RequireFromString("15000")

	svc := &mockService{
		transitionFn: func(_ context.Context, _ requesttrace.AuditInfo, id uuid.UUID, input service.TransitionInput) (service.TransitionResult, error) {
			require.Equal(t, turnID, id)
			require.Equal(t, stageID, input.ToStageID)
			return service.TransitionResult{
				Turn: persistence.Turn{ID: id, StageID: &stageID, Status: persistence.TurnStatusOnHold, EstimatedCost: &cost},
				History: persistence.TurnStageHistory{
					ID:        uuid.New(),
					TurnID:    id,
					ToStageID: stageID,
					ChangedBy: "u1",
				},
				RequestedApprovals: []persistence.Approval{{
					ID:           uuid.New(),
					TurnID:       id,
					ApprovalType: persistence.ApprovalTypeHO,
					Status:       persistence.ApprovalStatusPending,
				}},
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	body := `{"toStageId":"` + stageID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/turns/"+turnID.String()+"/transition", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Turn               persistence.Turn       `json:"turn"`
		RequestedApprovals []persistence.Approval `json:"requestedApprovals"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Equal(t, persistence.TurnStatusOnHold, response.Turn.Status)
	require.Len(t, response.RequestedApprovals, 1)
	require.Equal(t, persistence.ApprovalTypeHO, response.RequestedApprovals[0].ApprovalType)
}

func TestHandlerTransitionStageNotFound(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		transitionFn: func(_ context.Context, _ requesttrace.AuditInfo, _ uuid.UUID, _ service.TransitionInput) (service.TransitionResult, error) {
			return service.TransitionResult{}, service.ErrStageNotFound
		},
	}
	router := newTestRouter(t, svc)

	body := `{"toStageId":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/turns/"+uuid.NewString()+"/transition", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	problem := decodeProblem(t, rec)
	require.NotNil(t, problem.Detail)
	require.Equal(t, "stage not found", *problem.Detail)
}

func TestHandlerTransitionValidationError(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		transitionFn: func(_ context.Context, _ requesttrace.AuditInfo, _ uuid.UUID, _ service.TransitionInput) (service.TransitionResult, error) {
			return service.TransitionResult{}, &service.ValidationError{Fields: service.FieldErrors{
				"toStageId": {"stage in_progress requires a vendor to be assigned"},
			}}
		},
	}
	router := newTestRouter(t, svc)

	body := `{"toStageId":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/turns/"+uuid.NewString()+"/transition", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.NotNil(t, problem.Errors)
	require.Contains(t, *problem.Errors, "toStageId")
}

func TestHandlerListHistory(t *testing.T) {
	t.Parallel()

	turnID := uuid.New()
	durationMs := int64(90_000)
	svc := &mockService{
		listHistoryFn: func(_ context.Context, id uuid.UUID) ([]persistence.TurnStageHistory, error) {
			require.Equal(t, turnID, id)
			return []persistence.TurnStageHistory{{
				ID:         uuid.New(),
				TurnID:     id,
				ToStageID:  uuid.New(),
				ChangedBy:  "u1",
				DurationMs: &durationMs,
			}}, nil
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/turns/"+turnID.String()+"/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Items []persistence.TurnStageHistory `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Len(t, listing.Items, 1)
	require.NotNil(t, listing.Items[0].DurationMs)
	require.Equal(t, durationMs, *listing.Items[0].DurationMs)
}

func TestHandlerListStages(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listStagesFn: func(_ context.Context) ([]persistence.TurnStage, error) {
			return []persistence.TurnStage{
				{ID: uuid.New(), Key: "draft", Name: "Draft", IsDefault: true, IsActive: true},
				{ID: uuid.New(), Key: "complete", Name: "Complete", IsFinal: true, IsActive: true},
			}, nil
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/turn-stages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Items []persistence.TurnStage `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Len(t, listing.Items, 2)
}
