// Package handler exposes read access to the audit trail. Audit records are
// written by the domain services through the shared recorder; this surface
// only lists them.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arunavo4/turns-management-sub001/platform/go/httpjson"
	platformlogging "github.com/arunavo4/turns-management-sub001/platform/go/logging"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/problemdetails"
)

// Handler lists audit records.
type Handler struct {
	store  *persistence.AuditLogStore
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(store *persistence.AuditLogStore, logger *zap.Logger) *Handler {
	if store == nil {
		panic("audit log store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the audit routes on a router rooted at /api/v1.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit-logs", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := persistence.AuditLogFilter{}

	if tableName := r.URL.Query().Get("tableName"); tableName != "" {
		filter.TableName = &tableName
	}
	if turnID := r.URL.Query().Get("turnId"); turnID != "" {
		parsed, err := uuid.Parse(turnID)
		if err != nil {
			problemdetails.Write(w, problemdetails.Build(
				"Validation failed", "turnId must be a UUID",
				problemdetails.TypeValidation, http.StatusBadRequest, nil))
			return
		}
		filter.TurnID = &parsed
	}
	filter.Limit = queryInt(r, "limit")
	filter.Offset = queryInt(r, "offset")

	logs, err := h.store.ListAuditLogs(r.Context(), filter)
	if err != nil {
		logger := h.logger
		if ctxLogger, ok := platformlogging.FromContext(r.Context()); ok {
			logger = ctxLogger
		}
		logger.Error("audit log listing failed", zap.Error(err))
		problemdetails.Write(w, problemdetails.Build(
			"Internal server error", "an unexpected error occurred",
			problemdetails.TypeInternal, http.StatusInternalServerError, nil))
		return
	}

	if logs == nil {
		logs = []persistence.AuditLog{}
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"items": logs})
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
