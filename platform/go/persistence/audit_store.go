package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogStore appends and queries immutable audit records. There are no
// update or delete operations on purpose.
type AuditLogStore struct {
	pool *pgxpool.Pool
}

func NewAuditLogStore(pool *pgxpool.Pool) (*AuditLogStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AuditLogStore{pool: pool}, nil
}

func (s *AuditLogStore) InsertAuditLog(ctx context.Context, entry AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.TableName == "" || entry.RecordID == "" {
		return errors.New("table name and record id are required")
	}

	oldValues, err := marshalJSONB(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := marshalJSONB(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}
	metadata, err := marshalJSONB(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs (
			id, table_name, record_id, action, actor_id, actor_email, actor_role,
			old_values, new_values, changed_fields, turn_id, property_id, vendor_id,
			context, metadata, ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8::jsonb, $9::jsonb, $10, $11, $12, $13,
			$14, $15::jsonb, $16, $17, NOW()
		)
	`,
		entry.ID, entry.TableName, entry.RecordID, entry.Action,
		entry.ActorID, entry.ActorEmail, entry.ActorRole,
		oldValues, newValues, entry.ChangedFields,
		entry.TurnID, entry.PropertyID, entry.VendorID,
		entry.Context, metadata, entry.IPAddress, entry.UserAgent)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

type AuditLogFilter struct {
	TableName *string
	TurnID    *uuid.UUID
	Limit     int
	Offset    int
}

func (s *AuditLogStore) ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, table_name, record_id, action, actor_id, actor_email, actor_role,
		       old_values, new_values, changed_fields, turn_id, property_id, vendor_id,
		       context, metadata, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE ($1::text IS NULL OR table_name = $1)
		  AND ($2::uuid IS NULL OR turn_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, filter.TableName, filter.TurnID, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []AuditLog
	for rows.Next() {
		entry, scanErr := scanAuditLog(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}

	return entries, nil
}

func scanAuditLog(row pgx.Row) (AuditLog, error) {
	var (
		entry     AuditLog
		oldValues []byte
		newValues []byte
		metadata  []byte
	)

	err := row.Scan(
		&entry.ID, &entry.TableName, &entry.RecordID, &entry.Action,
		&entry.ActorID, &entry.ActorEmail, &entry.ActorRole,
		&oldValues, &newValues, &entry.ChangedFields,
		&entry.TurnID, &entry.PropertyID, &entry.VendorID,
		&entry.Context, &metadata, &entry.IPAddress, &entry.UserAgent,
		&entry.CreatedAt,
	)
	if err != nil {
		return AuditLog{}, err
	}

	if entry.OldValues, err = unmarshalJSONB(oldValues); err != nil {
		return AuditLog{}, fmt.Errorf("unmarshal old values: %w", err)
	}
	if entry.NewValues, err = unmarshalJSONB(newValues); err != nil {
		return AuditLog{}, fmt.Errorf("unmarshal new values: %w", err)
	}
	if entry.Metadata, err = unmarshalJSONB(metadata); err != nil {
		return AuditLog{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return entry, nil
}

func marshalJSONB(values map[string]any) (*string, error) {
	if values == nil {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func unmarshalJSONB(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}
