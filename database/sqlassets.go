package sqlassets

import _ "embed"

//go:embed schema/turns.sql
var TurnsSQL string

//go:embed schema/approvals.sql
var ApprovalsSQL string

//go:embed schema/audit_logs.sql
var AuditLogsSQL string
