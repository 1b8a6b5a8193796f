package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	reports  singleflight.Group
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/available", h.available)
	r.Get("/levels", h.levels)
	r.Get("/movements", h.movements)
	r.Get("/reports/low-stock", h.lowStock)
	r.Get("/reports/expiring", h.expiring)
	r.Post("/adjustments/increment", h.increment)
	r.Post("/adjustments/decrement", h.decrement)
}

type adjustmentRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Expiration string `json:"expiration,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) decodeAdjustment(r *http.Request) (AdjustmentInput, error) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return AdjustmentInput{}, err
	}
	if err := h.validate.Struct(req); err != nil {
		return AdjustmentInput{}, err
	}
	input := AdjustmentInput{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		ActorID:    shared.ActorFromContext(r.Context()).ID,
	}
	if req.Expiration != "" {
		exp, err := time.Parse("2006-01-02", req.Expiration)
		if err != nil {
			return AdjustmentInput{}, err
		}
		input.Expiration = &exp
	}
	return input, nil
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeAdjustment(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Increment(r.Context(), input); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"status": "applied"})
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeAdjustment(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	plan, err := h.service.DecrementFEFO(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consumed": plan})
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	productID, locationID, err := productLocationParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	qty, err := h.service.GetAvailable(r.Context(), productID, locationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "location_id": locationID, "available": qty})
}

func (h *Handler) levels(w http.ResponseWriter, r *http.Request) {
	productID, locationID, err := productLocationParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	levels, err := h.service.GetLevels(r.Context(), productID, locationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": levels})
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	productID, locationID, err := productLocationParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movements, err := h.service.GetMovements(r.Context(), MovementFilter{ProductID: productID, LocationID: locationID})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	org := shared.OrgFromContext(r.Context())
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	key := fmt.Sprintf("low-stock:%d:%d", org.ID, locationID)
	result, err, _ := h.reports.Do(key, func() (any, error) {
		return h.service.LowStock(r.Context(), org.ID, locationID)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	org := shared.OrgFromContext(r.Context())
	locationID, _ := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	key := fmt.Sprintf("expiring:%d:%d", org.ID, locationID)
	result, err, _ := h.reports.Do(key, func() (any, error) {
		return h.service.ExpiringSoon(r.Context(), org.ID, locationID)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrBatchConflict):
		httpx.Problem(w, http.StatusConflict, "Batch Conflict", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func productLocationParams(r *http.Request) (int64, int64, error) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		return 0, 0, errors.New("product_id must be a positive integer")
	}
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		return 0, 0, errors.New("location_id must be a positive integer")
	}
	return productID, locationID, nil
}
