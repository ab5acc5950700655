package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arunavo4/turns-management-sub001/domains/turns/be/service"
	"github.com/arunavo4/turns-management-sub001/platform/go/httpjson"
	platformlogging "github.com/arunavo4/turns-management-sub001/platform/go/logging"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/problemdetails"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
	"github.com/arunavo4/turns-management-sub001/platform/go/validation"
)

const turnsBasePath = "/api/v1/turns"

type operation string

const (
	listOperation       operation = "listTurns"
	createOperation     operation = "createTurn"
	getOperation        operation = "getTurn"
	updateOperation     operation = "updateTurn"
	transitionOperation operation = "transitionTurn"
	historyOperation    operation = "listTurnHistory"
	stagesOperation     operation = "listTurnStages"
)

// Handler exposes the turn workflow over HTTP.
type Handler struct {
	svc      service.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("turns service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, validate: validation.New(), logger: logger}
}

// Register mounts the turn routes on a router rooted at /api/v1.
func (h *Handler) Register(r chi.Router) {
	r.Route("/turns", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{turnId}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Patch("/", h.update)
			r.Post("/transition", h.transition)
			r.Get("/history", h.history)
		})
	})
	r.Get("/turn-stages", h.stages)
}

type createTurnRequest struct {
	PropertyID    uuid.UUID                 `json:"propertyId" validate:"required"`
	VendorID      *uuid.UUID                `json:"vendorId"`
	StageID       *uuid.UUID                `json:"stageId"`
	Priority      *persistence.TurnPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	EstimatedCost *decimal.Decimal          `json:"estimatedCost"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createTurnRequest
	if !h.decodePayload(w, r, &payload, createOperation) {
		return
	}

	turn, err := h.svc.Create(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), service.CreateInput{
		PropertyID:    payload.PropertyID,
		VendorID:      payload.VendorID,
		StageID:       payload.StageID,
		Priority:      payload.Priority,
		EstimatedCost: payload.EstimatedCost,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", turnsBasePath, turn.ID))
	httpjson.Write(w, http.StatusCreated, turn)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "turnId")
	if !ok {
		return
	}

	turn, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, turn)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	input := service.ListInput{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := persistence.TurnStatus(status)
		input.Status = &s
	}
	if stageID := r.URL.Query().Get("stageId"); stageID != "" {
		parsed, err := uuid.Parse(stageID)
		if err != nil {
			problemdetails.Write(w, problemdetails.Build(
				"Validation failed", "stageId must be a UUID",
				problemdetails.TypeValidation, http.StatusBadRequest, nil))
			return
		}
		input.StageID = &parsed
	}
	input.Limit = queryInt(r, "limit")
	input.Offset = queryInt(r, "offset")

	turns, err := h.svc.List(r.Context(), input)
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"items": emptyIfNil(turns)})
}

type updateTurnRequest struct {
	VendorID      *uuid.UUID                `json:"vendorId"`
	Priority      *persistence.TurnPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	EstimatedCost *decimal.Decimal          `json:"estimatedCost"`
	ActualCost    *decimal.Decimal          `json:"actualCost"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "turnId")
	if !ok {
		return
	}

	var payload updateTurnRequest
	if !h.decodePayload(w, r, &payload, updateOperation) {
		return
	}

	turn, err := h.svc.Update(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), id, service.UpdateInput{
		VendorID:      payload.VendorID,
		Priority:      payload.Priority,
		EstimatedCost: payload.EstimatedCost,
		ActualCost:    payload.ActualCost,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, updateOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, turn)
}

type transitionTurnRequest struct {
	ToStageID uuid.UUID `json:"toStageId" validate:"required"`
	Reason    *string   `json:"reason"`
}

type transitionTurnResponse struct {
	Turn               persistence.Turn             `json:"turn"`
	History            persistence.TurnStageHistory `json:"history"`
	RequestedApprovals []persistence.Approval       `json:"requestedApprovals"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "turnId")
	if !ok {
		return
	}

	var payload transitionTurnRequest
	if !h.decodePayload(w, r, &payload, transitionOperation) {
		return
	}

	result, err := h.svc.Transition(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), id, service.TransitionInput{
		ToStageID: payload.ToStageID,
		Reason:    payload.Reason,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, transitionOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, transitionTurnResponse{
		Turn:               result.Turn,
		History:            result.History,
		RequestedApprovals: emptyIfNil(result.RequestedApprovals),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "turnId")
	if !ok {
		return
	}

	entries, err := h.svc.ListHistory(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, historyOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"items": emptyIfNil(entries)})
}

func (h *Handler) stages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.svc.ListStages(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, stagesOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"items": emptyIfNil(stages)})
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, payload any, op operation) bool {
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
	_, problem := h.problemForError(ctx, err, op)
	problemdetails.Write(w, problem)
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) (int, problemdetails.ProblemDetails) {
	status, title, detail, problemType, fieldErrors := classifyError(err)

	logger := h.loggerFrom(ctx)
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("turns operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("turns resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("turns request rejected", append(fields, zap.Error(err))...)
	}

	return status, problemdetails.Build(title, detail, problemType, status, fieldErrors)
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
			"turn not found",
			problemdetails.TypeNotFound,
			nil
	case errors.Is(err, service.ErrStageNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"stage not found",
			problemdetails.TypeNotFound,
			nil
	case errors.Is(err, service.ErrNoDefaultStage):
		return http.StatusConflict,
			"Conflict",
			"no default stage is configured",
			problemdetails.TypeConflict,
			nil
	case errors.Is(err, service.ErrNumberExhausted):
		return http.StatusConflict,
			"Conflict",
			"turn number collision, retry the request",
			problemdetails.TypeConflict,
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

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
