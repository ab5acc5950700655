package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/arunavo4/turns-management-sub001/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "TURNS_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// System fallback identity used when no authenticated actor is on the context.
const (
	SystemActorID    = "system"
	SystemActorEmail = "system@turns.local"
	SystemActorRole  = "system"
)

// AuditInfo captures request-scoped actor metadata needed for traceability and audit records.
// UserID/Email/Role are set only when ActorKind is user. IPAddress and UserAgent carry the
// client fingerprint recorded alongside every audit entry.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	Email     string
	Role      string
	RequestID string
	IPAddress string
	UserAgent string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrSystem returns the AuditInfo stored on the context, or the
// well-known system identity when absent. Background jobs and the approval
// trigger fired from stage transitions run under this fallback.
func FromContextOrSystem(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return System("")
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an
// anonymous identity when absent. HTTP handlers use this fallback.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated user credentials and a request ID.
// Returns an error when creds are nil or missing a user ID.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	id := creds.ID
	return AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &id,
		Email:     creds.Email,
		Role:      creds.Role,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background/system operations.
func System(requestID string) AuditInfo {
	return AuditInfo{
		ActorKind: ActorKindSystem,
		Email:     SystemActorEmail,
		Role:      SystemActorRole,
		RequestID: requestID,
	}
}

// ActorID resolves the identifier recorded in audit entries for this actor.
func (a AuditInfo) ActorID() string {
	switch a.ActorKind {
	case ActorKindUser:
		if a.UserID != nil {
			return *a.UserID
		}
		return "unknown-user"
	case ActorKindSystem:
		return SystemActorID
	default:
		return "anonymous"
	}
}

// IsAuthenticated reports whether the request carries an authenticated user actor.
func (a AuditInfo) IsAuthenticated() bool {
	return a.ActorKind == ActorKindUser && a.UserID != nil && *a.UserID != ""
}
