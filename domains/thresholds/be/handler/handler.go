package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arunavo4/turns-management-sub001/domains/thresholds/be/service"
	"github.com/arunavo4/turns-management-sub001/platform/go/httpjson"
	platformlogging "github.com/arunavo4/turns-management-sub001/platform/go/logging"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/problemdetails"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
	"github.com/arunavo4/turns-management-sub001/platform/go/validation"
)

const thresholdsBasePath = "/api/v1/approval-thresholds"

type operation string

const (
	listOperation       operation = "listApprovalThresholds"
	createOperation     operation = "createApprovalThreshold"
	getOperation        operation = "getApprovalThreshold"
	updateOperation     operation = "updateApprovalThreshold"
	deactivateOperation operation = "deactivateApprovalThreshold"
)

// Handler exposes threshold administration over HTTP.
type Handler struct {
	svc      service.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("thresholds service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, validate: validation.New(), logger: logger}
}

// Register mounts the threshold routes on a router rooted at /api/v1.
func (h *Handler) Register(r chi.Router) {
	r.Route("/approval-thresholds", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{thresholdId}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Patch("/", h.update)
			r.Delete("/", h.deactivate)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("includeInactive") != "true"

	thresholds, err := h.svc.List(r.Context(), activeOnly)
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"items": emptyIfNil(thresholds)})
}

type createThresholdRequest struct {
	Name               string           `json:"name" validate:"required"`
	MinAmount          *decimal.Decimal `json:"minAmount" validate:"required"`
	MaxAmount          *decimal.Decimal `json:"maxAmount"`
	ApprovalType       string           `json:"approvalType" validate:"required,oneof=dfo ho"`
	RequiresSequential bool             `json:"requiresSequential"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createThresholdRequest
	if !h.decodePayload(w, r, &payload) {
		return
	}

	threshold, err := h.svc.Create(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), service.CreateInput{
		Name:               payload.Name,
		MinAmount:          *payload.MinAmount,
		MaxAmount:          payload.MaxAmount,
		ApprovalType:       persistence.ApprovalType(payload.ApprovalType),
		RequiresSequential: payload.RequiresSequential,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", thresholdsBasePath, threshold.ID))
	httpjson.Write(w, http.StatusCreated, threshold)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "thresholdId")
	if !ok {
		return
	}

	threshold, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, threshold)
}

type updateThresholdRequest struct {
	Name               *string          `json:"name"`
	MinAmount          *decimal.Decimal `json:"minAmount"`
	MaxAmount          *decimal.Decimal `json:"maxAmount"`
	ClearMaxAmount     bool             `json:"clearMaxAmount"`
	ApprovalType       *string          `json:"approvalType" validate:"omitempty,oneof=dfo ho"`
	RequiresSequential *bool            `json:"requiresSequential"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "thresholdId")
	if !ok {
		return
	}

	var payload updateThresholdRequest
	if !h.decodePayload(w, r, &payload) {
		return
	}

	input := service.UpdateInput{
		Name:               payload.Name,
		MinAmount:          payload.MinAmount,
		MaxAmount:          payload.MaxAmount,
		ClearMaxAmount:     payload.ClearMaxAmount,
		RequiresSequential: payload.RequiresSequential,
	}
	if payload.ApprovalType != nil {
		approvalType := persistence.ApprovalType(*payload.ApprovalType)
		input.ApprovalType = &approvalType
	}

	threshold, err := h.svc.Update(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), id, input)
	if err != nil {
		h.writeError(r.Context(), w, err, updateOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, threshold)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "thresholdId")
	if !ok {
		return
	}

	if err := h.svc.Deactivate(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), id); err != nil {
		h.writeError(r.Context(), w, err, deactivateOperation)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, payload any) bool {
	if err := httpjson.Decode(r, payload); err != nil {
		problemdetails.Write(w, problemdetails.Build(
			"Invalid request body", err.Error(),
			problemdetails.TypeValidation, http.StatusBadRequest, nil))
		return false
	}

	if err := h.validate.Struct(payload); err != nil {
		problemdetails.Write(w, problemdetails.Build(
			"Validation failed", "one or more fields are invalid",
			problemdetails.TypeValidation, http.StatusBadRequest, validation.FieldErrors(err)))
		return false
	}

	return true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		problemdetails.Write(w, problemdetails.Build(
			"Validation failed", param+" must be a UUID",
			problemdetails.TypeValidation, http.StatusBadRequest, nil))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op operation) {
	status, title, detail, problemType, fieldErrors := classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("thresholds operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("thresholds resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("thresholds request rejected", append(fields, zap.Error(err))...)
	}

	problemdetails.Write(w, problemdetails.Build(title, detail, problemType, status, fieldErrors))
}

func classifyError(err error) (status int, title, detail, problemType string, fieldErrors map[string][]string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problemdetails.TypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"approval threshold not found",
			problemdetails.TypeNotFound,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problemdetails.TypeInternal,
			nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
