package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/catalog"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the sales module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/checkout", h.checkout)
	r.Get("/{id}", h.get)
}

type cartLineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice string `json:"unit_price,omitempty"`
	Discount  string `json:"discount,omitempty"`
}

type checkoutRequest struct {
	LocationID int64             `json:"location_id" validate:"required,gt=0"`
	CustomerID int64             `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Method     string            `json:"method" validate:"required,oneof=CASH CARD MOBILE_MONEY CREDIT PARTIAL"`
	Tendered   string            `json:"tendered,omitempty"`
	Lines      []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CheckoutInput{
		OrgID:      shared.OrgFromContext(r.Context()).ID,
		LocationID: req.LocationID,
		CustomerID: req.CustomerID,
		CashierID:  shared.ActorFromContext(r.Context()).ID,
		Method:     Method(req.Method),
	}
	if req.Tendered != "" {
		tendered, err := decimal.NewFromString(req.Tendered)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tendered must be a decimal string")
			return
		}
		input.Tendered = tendered
	}
	for _, line := range req.Lines {
		cartLine := CartLine{ProductID: line.ProductID, Quantity: line.Quantity}
		if line.UnitPrice != "" {
			price, err := decimal.NewFromString(line.UnitPrice)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_price must be a decimal string")
				return
			}
			cartLine.UnitPrice = &price
		}
		if line.Discount != "" {
			discount, err := decimal.NewFromString(line.Discount)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "discount must be a decimal string")
				return
			}
			cartLine.Discount = discount
		}
		input.Lines = append(input.Lines, cartLine)
	}
	sale, err := h.service.Checkout(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	org := shared.OrgFromContext(r.Context())
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)
	sales, err := h.service.ListSales(r.Context(), org.ID, locationID, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales, "page": p.Page})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSaleNotFound), errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, credit.ErrLimitExceeded):
		httpx.Problem(w, http.StatusConflict, "Credit Limit Exceeded", err.Error())
	case errors.Is(err, cashdrawer.ErrSessionNotOpen):
		httpx.Problem(w, http.StatusConflict, "Drawer Unavailable", err.Error())
	case errors.Is(err, ErrInsufficientPayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Payment", err.Error())
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrInvalidMethod), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
