package cashdrawer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the cash drawer module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs cashdrawer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers drawer session routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/open", h.open)
	r.Post("/{id}/pause", h.pause)
	r.Post("/{id}/resume", h.resume)
	r.Post("/{id}/close", h.close)
	r.Post("/expenses", h.expense)
	r.Get("/{id}/report", h.report)
}

type openRequest struct {
	LocationID   int64  `json:"location_id" validate:"required,gt=0"`
	OpeningFloat string `json:"opening_float" validate:"required"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	openingFloat, err := decimal.NewFromString(req.OpeningFloat)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "opening_float must be a decimal string")
		return
	}
	session, err := h.service.Open(r.Context(), OpenInput{
		OrgID:        shared.OrgFromContext(r.Context()).ID,
		LocationID:   req.LocationID,
		CashierID:    shared.ActorFromContext(r.Context()).ID,
		OpeningFloat: openingFloat,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Pause)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Resume)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sessionID int64) error) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type closeRequest struct {
	CountedAmount string `json:"counted_amount" validate:"required"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	counted, err := decimal.NewFromString(req.CountedAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "counted_amount must be a decimal string")
		return
	}
	session, err := h.service.Close(r.Context(), CloseInput{
		SessionID:     id,
		CountedAmount: counted,
		ActorID:       shared.ActorFromContext(r.Context()).ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

type expenseRequest struct {
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	Category    string `json:"category" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Amount      string `json:"amount" validate:"required"`
}

func (h *Handler) expense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	org := shared.OrgFromContext(r.Context())
	expense, err := h.service.PostExpense(r.Context(), ExpenseInput{
		OrgID:       org.ID,
		OrgCode:     org.Code,
		LocationID:  req.LocationID,
		Category:    req.Category,
		Description: req.Description,
		Amount:      amount,
		ActorID:     shared.ActorFromContext(r.Context()).ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	report, err := h.service.Report(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "location_id must be a positive integer")
		return
	}
	sessions, err := h.service.ListSessions(r.Context(), locationID, 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoOpenSession):
		httpx.Problem(w, http.StatusNotFound, "No Open Session", err.Error())
	case errors.Is(err, ErrSessionOpen), errors.Is(err, ErrSessionNotOpen), errors.Is(err, ErrSessionClosed):
		httpx.Problem(w, http.StatusConflict, "Session Conflict", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("cashdrawer request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}
