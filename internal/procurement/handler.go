package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the procurement module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/receivings", h.receive)
	r.Get("/{id}/receivings", h.receivings)
	r.Post("/receivings/{id}/void", h.void)
}

type orderLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	UnitCost  string `json:"unit_cost" validate:"required"`
}

type createOrderRequest struct {
	SupplierID int64              `json:"supplier_id" validate:"required,gt=0"`
	LocationID int64              `json:"location_id" validate:"required,gt=0"`
	Lines      []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateOrderInput{
		OrgID:      shared.OrgFromContext(r.Context()).ID,
		SupplierID: req.SupplierID,
		LocationID: req.LocationID,
		ActorID:    shared.ActorFromContext(r.Context()).ID,
	}
	for _, line := range req.Lines {
		cost, err := decimal.NewFromString(line.UnitCost)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_cost must be a decimal string")
			return
		}
		input.Lines = append(input.Lines, OrderLineInput{ProductID: line.ProductID, Quantity: line.Quantity, UnitCost: cost})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	org := shared.OrgFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)
	orders, err := h.service.ListOrders(r.Context(), org.ID, OrderStatus(r.URL.Query().Get("status")), p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders, "page": p.Page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SendOrder(r.Context(), id, shared.ActorFromContext(r.Context()).ID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.CancelOrder(r.Context(), id, shared.ActorFromContext(r.Context()).ID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

type receiveLineRequest struct {
	OrderItemID int64  `json:"order_item_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Expiration  string `json:"expiration,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type receiveRequest struct {
	Lines []receiveLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ReceiveInput{
		OrgID:   shared.OrgFromContext(r.Context()).ID,
		OrderID: id,
		ActorID: shared.ActorFromContext(r.Context()).ID,
	}
	for _, line := range req.Lines {
		receiveLine := ReceiveLineInput{OrderItemID: line.OrderItemID, Quantity: line.Quantity}
		if line.Expiration != "" {
			exp, err := time.Parse("2006-01-02", line.Expiration)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
			receiveLine.Expiration = &exp
		}
		input.Lines = append(input.Lines, receiveLine)
	}
	rec, err := h.service.Receive(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) receivings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	recs, err := h.service.ListReceivings(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receivings": recs})
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.VoidReceiving(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context()).ID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "voided"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrReceivingNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrOverReceipt), errors.Is(err, ErrOrderNotReceivable),
		errors.Is(err, ErrAlreadyVoided), errors.Is(err, ErrVoidConflict):
		httpx.Problem(w, http.StatusConflict, "Order Conflict", err.Error())
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("procurement request failed", slog.Any("error", err))
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
