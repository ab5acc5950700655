package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arunavo4/turns-management-sub001/domains/approvals/be/service"
	"github.com/arunavo4/turns-management-sub001/platform/go/httpjson"
	platformlogging "github.com/arunavo4/turns-management-sub001/platform/go/logging"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
	"github.com/arunavo4/turns-management-sub001/platform/go/problemdetails"
	"github.com/arunavo4/turns-management-sub001/platform/go/requesttrace"
	"github.com/arunavo4/turns-management-sub001/platform/go/validation"
)

type operation string

const (
	requestOperation  operation = "requestApprovals"
	getOperation      operation = "getApproval"
	listOperation     operation = "listTurnApprovals"
	decisionOperation operation = "decideApproval"
	cancelOperation   operation = "cancelApproval"
)

// Handler exposes the approval gate over HTTP.
type Handler struct {
	svc      service.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("approvals service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, validate: validation.New(), logger: logger}
}

// Register mounts the approval routes on a router rooted at /api/v1.
func (h *Handler) Register(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Post("/", h.request)
		r.Route("/{approvalId}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/decision", h.decision)
			r.Post("/cancel", h.cancel)
		})
	})
	r.Get("/turns/{turnId}/approvals", h.listForTurn)
}

type requestApprovalsRequest struct {
	TurnID uuid.UUID        `json:"turnId" validate:"required"`
	Amount *decimal.Decimal `json:"amount" validate:"required"`
	Notes  *string          `json:"notes"`
}

type requestApprovalsResponse struct {
	Approvals   []persistence.Approval `json:"approvals"`
	Turn        persistence.Turn       `json:"turn"`
	NoneCreated bool                   `json:"noneCreated"`
}

// request runs the threshold resolver against the amount and raises whatever
// approvals are missing. A request that needs nothing new answers 200; freshly
// raised approvals answer 201.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	var payload requestApprovalsRequest
	if !h.decodePayload(w, r, &payload) {
		return
	}

	result, err := h.svc.RequestApprovals(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), service.RequestInput{
		TurnID: payload.TurnID,
		Amount: *payload.Amount,
		Notes:  payload.Notes,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, requestOperation)
		return
	}

	status := http.StatusCreated
	if result.NoneNeeded {
		status = http.StatusOK
	}

	httpjson.Write(w, status, requestApprovalsResponse{
		Approvals:   emptyIfNil(result.Created),
		Turn:        result.Turn,
		NoneCreated: result.NoneNeeded,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "approvalId")
	if !ok {
		return
	}

	approval, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err, getOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, approval)
}

func (h *Handler) listForTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := h.pathUUID(w, r, "turnId")
	if !ok {
		return
	}

	approvals, err := h.svc.ListForTurn(r.Context(), turnID)
	if err != nil {
		h.writeError(r.Context(), w, err, listOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"items": emptyIfNil(approvals)})
}

type decisionRequest struct {
	Action          string  `json:"action" validate:"required,oneof=approve reject"`
	RejectionReason *string `json:"rejectionReason"`
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "approvalId")
	if !ok {
		return
	}

	var payload decisionRequest
	if !h.decodePayload(w, r, &payload) {
		return
	}

	approval, err := h.svc.Decide(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), id, service.DecisionInput{
		Action:          service.DecisionAction(payload.Action),
		RejectionReason: payload.RejectionReason,
	})
	if err != nil {
		h.writeError(r.Context(), w, err, decisionOperation)
		return
	}

	httpjson.Write(w, http.StatusOK, approval)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "approvalId")
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), requesttrace.FromContextOrAnonymous(r.Context()), id); err != nil {
		h.writeError(r.Context(), w, err, cancelOperation)
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
		logger.Error("approvals operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("approvals resource not found", append(fields, zap.Error(err))...)
	default:
		logger.Warn("approvals request rejected", append(fields, zap.Error(err))...)
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
			"approval not found",
			problemdetails.TypeNotFound,
			nil
	case errors.Is(err, service.ErrTurnNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"turn not found",
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
