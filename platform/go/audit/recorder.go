// Package audit provides the best-effort audit trail recorder. Every mutation
// in the system funnels through Recorder.Record; a failed audit write degrades
// to an operational log line and never fails the caller's primary operation.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
)

const defaultWriteTimeout = 5 * time.Second

// Store is the persistence boundary the recorder writes through.
type Store interface {
	InsertAuditLog(ctx context.Context, entry persistence.AuditLog) error
}

// Entry describes one observed event. OldValues/NewValues are optional
// snapshots (see Snapshot); when ChangedFields is nil and both snapshots are
// present the recorder computes the field diff itself.
type Entry struct {
	TableName     string
	RecordID      string
	Action        persistence.AuditAction
	OldValues     map[string]any
	NewValues     map[string]any
	ChangedFields []string
	TurnID        *uuid.UUID
	PropertyID    *uuid.UUID
	VendorID      *uuid.UUID
	Context       string
	Metadata      map[string]any
}

// Recorder appends immutable audit records. Construct one at process start and
// hand it to every component that mutates state; it is safe for concurrent use.
type Recorder struct {
	store        Store
	logger       *zap.Logger
	writeTimeout time.Duration
}

// NewRecorder builds a Recorder with the given store dependency.
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	if store == nil {
		panic("audit store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Recorder{store: store, logger: logger, writeTimeout: defaultWriteTimeout}
}

// Record persists an audit entry for the event described by entry. The actor
// is resolved from the ambient request trace, falling back to the system
// identity. Persistence failures are logged and swallowed: audit completeness
// is secondary to primary-operation availability, so this method never returns
// an error and never panics past the boundary.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	actor := requesttrace.FromContextOrSystem(ctx)

	record := persistence.AuditLog{
		ID:            uuid.New(),
		TableName:     entry.TableName,
		RecordID:      entry.RecordID,
		Action:        entry.Action,
		ActorID:       actor.ActorID(),
		OldValues:     entry.OldValues,
		NewValues:     entry.NewValues,
		ChangedFields: entry.ChangedFields,
		TurnID:        entry.TurnID,
		PropertyID:    entry.PropertyID,
		VendorID:      entry.VendorID,
		Metadata:      entry.Metadata,
	}

	if actor.Email != "" {
		email := actor.Email
		record.ActorEmail = &email
	}
	if actor.Role != "" {
		role := actor.Role
		record.ActorRole = &role
	}
	if entry.Context != "" {
		c := entry.Context
		record.Context = &c
	}
	if actor.IPAddress != "" {
		ip := actor.IPAddress
		record.IPAddress = &ip
	}
	if actor.UserAgent != "" {
		ua := actor.UserAgent
		record.UserAgent = &ua
	}

	if record.ChangedFields == nil && record.OldValues != nil && record.NewValues != nil {
		record.ChangedFields = ChangedFields(record.OldValues, record.NewValues)
	}

	// The audit write must survive the request context ending right after the
	// primary commit, but still has to be bounded.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	if err := r.store.InsertAuditLog(writeCtx, record); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("table", entry.TableName),
			zap.String("record_id", entry.RecordID),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}
