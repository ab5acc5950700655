package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/arunavo4/turns-management-sub001/database"
)

// BootstrapSchema applies the embedded DDL in a single transaction, in this order:
//  1. schema/turns.sql (stages, turns, stage history)
//  2. schema/approvals.sql (thresholds, approvals)
//  3. schema/audit_logs.sql
//
// SQL is embedded at build time so binaries stay self-contained. The DDL is
// idempotent and intended for CLI bootstrap and tests.
func BootstrapSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap schema: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.TurnsSQL)...)
	statements = append(statements, splitStatements(sqlassets.ApprovalsSQL)...)
	statements = append(statements, splitStatements(sqlassets.AuditLogsSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ddl tx: %w", err)
	}

	return nil
}

// splitStatements breaks a DDL asset into individual statements. The embedded
// SQL contains no string literals with semicolons, so a plain split is enough.
func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		statements = append(statements, trimmed)
	}
	return statements
}
