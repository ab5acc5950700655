package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

type mockStore struct {
	insertFn func(ctx context.Context, entry persistence.AuditLog) error
}

func (m *mockStore) InsertAuditLog(ctx context.Context, entry persistence.AuditLog) error {
	if m.insertFn == nil {
		panic("insertFn not configured")
	}
	return m.insertFn(ctx, entry)
}

func TestRecordResolvesActorFromContext(t *testing.T) {
	t.Parallel()

	var recorded persistence.AuditLog
	store := &mockStore{insertFn: func(_ context.Context, entry persistence.AuditLog) error {
		recorded = entry
		return nil
	}}

	recorder := NewRecorder(store, zap.NewNop())

	userID := "user-1"
	ctx := requesttrace.IntoContext(context.Background(), requesttrace.AuditInfo{
		ActorKind: requesttrace.ActorKindUser,
		UserID:    &userID,
		Email:     "user@example.com",
		Role:      "manager",
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})

	recorder.Record(ctx, Entry{
		TableName: persistence.TurnsTable,
		RecordID:  uuid.NewString(),
		Action:    persistence.AuditActionUpdate,
	})

	require.Equal(t, "user-1", recorded.ActorID)
	require.NotNil(t, recorded.ActorEmail)
	require.Equal(t, "user@example.com", *recorded.ActorEmail)
	require.NotNil(t, recorded.IPAddress)
	require.Equal(t, "10.0.0.1", *recorded.IPAddress)
	require.NotNil(t, recorded.UserAgent)
	require.Equal(t, "test-agent", *recorded.UserAgent)
}

func TestRecordFallsBackToSystemActor(t *testing.T) {
	t.Parallel()

	var recorded persistence.AuditLog
	store := &mockStore{insertFn: func(_ context.Context, entry persistence.AuditLog) error {
		recorded = entry
		return nil
	}}

	recorder := NewRecorder(store, zap.NewNop())
	recorder.Record(context.Background(), Entry{
		TableName: persistence.ApprovalsTable,
		RecordID:  uuid.NewString(),
		Action:    persistence.AuditActionCreate,
	})

	require.Equal(t, requesttrace.SystemActorID, recorded.ActorID)
}

func TestRecordComputesChangedFields(t *testing.T) {
	t.Parallel()

	var recorded persistence.AuditLog
	store := &mockStore{insertFn: func(_ context.Context, entry persistence.AuditLog) error {
		recorded = entry
		return nil
	}}

	recorder := NewRecorder(store, zap.NewNop())
	recorder.Record(context.Background(), Entry{
		TableName: persistence.TurnsTable,
		RecordID:  uuid.NewString(),
		Action:    persistence.AuditActionUpdate,
		OldValues: map[string]any{"status": "draft", "priority": "medium"},
		NewValues: map[string]any{"status": "in_progress", "priority": "medium"},
	})

	require.Equal(t, []string{"status"}, recorded.ChangedFields)
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	t.Parallel()

	store := &mockStore{insertFn: func(_ context.Context, _ persistence.AuditLog) error {
		return errors.New("connection refused")
	}}

	recorder := NewRecorder(store, zap.NewNop())

	require.NotPanics(t, func() {
		recorder.Record(context.Background(), Entry{
			TableName: persistence.TurnsTable,
			RecordID:  uuid.NewString(),
			Action:    persistence.AuditActionUpdate,
		})
	})
}
