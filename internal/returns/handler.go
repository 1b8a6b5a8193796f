package returns

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/sales"
	"github.com/meridian-retail/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the returns module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs returns handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers return routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/sale/{id}", h.bySale)
}

type lineRequest struct {
	SaleItemID  int64  `json:"sale_item_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Condition   string `json:"condition" validate:"required,oneof=GOOD DAMAGED EXPIRED"`
	Disposition string `json:"disposition" validate:"required,oneof=RETURN_TO_STOCK DISPOSE QUARANTINE"`
}

type createRequest struct {
	SaleID       int64         `json:"sale_id" validate:"required,gt=0"`
	RefundMethod string        `json:"refund_method" validate:"required,oneof=CASH CREDIT"`
	Reason       string        `json:"reason" validate:"required,max=500"`
	Notes        string        `json:"notes" validate:"max=1000"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		OrgID:        shared.OrgFromContext(r.Context()).ID,
		SaleID:       req.SaleID,
		RefundMethod: RefundMethod(req.RefundMethod),
		Reason:       req.Reason,
		Notes:        req.Notes,
		ActorID:      shared.ActorFromContext(r.Context()).ID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			SaleItemID:  line.SaleItemID,
			Quantity:    line.Quantity,
			Condition:   Condition(line.Condition),
			Disposition: Disposition(line.Disposition),
		})
	}
	ret, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ret, err := h.service.GetReturn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) bySale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.ListBySale(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"returns": result})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReturnNotFound), errors.Is(err, sales.ErrSaleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrExceedsSold):
		httpx.Problem(w, http.StatusConflict, "Quantity Exceeds Sold", err.Error())
	case errors.Is(err, cashdrawer.ErrSessionNotOpen):
		httpx.Problem(w, http.StatusConflict, "Drawer Unavailable", err.Error())
	case errors.Is(err, ErrEmptyReturn), errors.Is(err, ErrInvalidDisposition),
		errors.Is(err, ErrInvalidCondition), errors.Is(err, ErrInvalidRefundMethod),
		errors.Is(err, ErrCustomerRequired), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("returns request failed", slog.Any("error", err))
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
