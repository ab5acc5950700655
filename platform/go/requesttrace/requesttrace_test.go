package requesttrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/arunavo4/turns-management-sub001/platform/go/auth"
)

func TestIntoContextAndFromContext(t *testing.T) {
	audit := AuditInfo{ActorKind: ActorKindUser, UserID: ptr("user-123"), RequestID: "req-abc"}

	ctx := IntoContext(context.Background(), audit)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, audit, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
}

func TestFromCredentials(t *testing.T) {
	creds := &platformauth.UserCredentials{ID: "user-456", Email: "u@example.com", Role: "admin"}

	audit, err := FromCredentials(creds, "req-xyz")
	require.NoError(t, err)
	require.Equal(t, ActorKindUser, audit.ActorKind)
	require.NotNil(t, audit.UserID)
	require.Equal(t, "user-456", *audit.UserID)
	require.Equal(t, "u@example.com", audit.Email)
	require.Equal(t, "admin", audit.Role)
	require.Equal(t, "req-xyz", audit.RequestID)
	require.True(t, audit.IsAuthenticated())
}

func TestFromCredentialsMissingUser(t *testing.T) {
	_, err := FromCredentials(&platformauth.UserCredentials{}, "req-1")
	require.Error(t, err)
}

func TestAnonymous(t *testing.T) {
	audit := Anonymous("req-anon")
	require.Equal(t, ActorKindAnonymous, audit.ActorKind)
	require.Nil(t, audit.UserID)
	require.Equal(t, "anonymous", audit.ActorID())
	require.False(t, audit.IsAuthenticated())
}

func TestSystem(t *testing.T) {
	audit := System("req-sys")
	require.Equal(t, ActorKindSystem, audit.ActorKind)
	require.Nil(t, audit.UserID)
	require.Equal(t, SystemActorID, audit.ActorID())
}

func TestFromContextOrSystemFallback(t *testing.T) {
	audit := FromContextOrSystem(context.Background())
	require.Equal(t, ActorKindSystem, audit.ActorKind)

	stored := AuditInfo{ActorKind: ActorKindUser, UserID: ptr("user-1")}
	audit = FromContextOrSystem(IntoContext(context.Background(), stored))
	require.Equal(t, stored, audit)
}

func ptr[T any](v T) *T { return &v }
